// Package report runs the per-job pipeline: fetch raw disclosure records
// from a source adapter, normalize them into canonical statement models,
// and synthesize the workbook artifact.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/normalize"
	"github.com/sells-group/filings-cli/internal/source"
	"github.com/sells-group/filings-cli/internal/workbook"
)

// Progress milestones, advisory only.
const (
	StageFetch      = "fetching filings"
	StageNormalize  = "normalizing statements"
	StageSynthesize = "building workbook"
)

// Progress receives coarse milestone updates from a running build.
type Progress func(stage string)

// Builder wires the adapters and normalizer into a single pipeline shared
// by all jobs. It is stateless and safe for concurrent use.
type Builder struct {
	sec  source.Adapter
	fdic source.Adapter
	norm *normalize.Normalizer
	now  func() time.Time
}

// NewBuilder creates a Builder over the two source adapters.
func NewBuilder(sec, fdic source.Adapter, norm *normalize.Normalizer) *Builder {
	return &Builder{sec: sec, fdic: fdic, norm: norm, now: time.Now}
}

// Build runs the full pipeline for one job. Cancellation is acknowledged at
// stage checkpoints; a cancelled context surfaces as ctx.Err().
func (b *Builder) Build(ctx context.Context, kind model.JobKind, params model.JobParams, progress Progress) (*model.Artifact, error) {
	if progress == nil {
		progress = func(string) {}
	}
	switch kind {
	case model.KindSEC:
		return b.buildSEC(ctx, params.Ticker, progress)
	case model.KindFDIC:
		return b.buildFDIC(ctx, params.Certs, progress)
	default:
		return nil, eris.Errorf("report: unknown job kind %q", kind)
	}
}

func (b *Builder) buildSEC(ctx context.Context, ticker string, progress Progress) (*model.Artifact, error) {
	log := zap.L().With(zap.String("ticker", ticker))
	ticker = strings.ToUpper(ticker)

	progress(StageFetch)
	records, name, err := b.sec.Fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	progress(StageNormalize)
	set, err := b.norm.Normalize(ticker, name, records)
	if err != nil {
		return nil, err
	}
	log.Info("report: normalized filings",
		zap.Int("records", len(records)),
		zap.Int("diagnostics", len(set.Diagnostics)),
	)
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	progress(StageSynthesize)
	data, err := workbook.Synthesize([]*model.StatementSet{set}, workbook.Options{GeneratedAt: b.now()})
	if err != nil {
		return nil, eris.Wrap(err, "report: synthesize")
	}

	return &model.Artifact{
		Data:     data,
		Filename: fmt.Sprintf("%s_10Q_Financials.xlsx", ticker),
	}, nil
}

// buildFDIC fetches each certificate independently and concatenates the
// canonical models into one workbook, one sheet set per bank. Models are
// never merged across banks.
func (b *Builder) buildFDIC(ctx context.Context, certs []string, progress Progress) (*model.Artifact, error) {
	log := zap.L().With(zap.Strings("certs", certs))

	progress(StageFetch)
	type bankData struct {
		cert    string
		name    string
		records []model.RawRecord
	}
	banks := make([]bankData, 0, len(certs))
	for _, cert := range certs {
		records, name, err := b.fdic.Fetch(ctx, cert)
		if err != nil {
			return nil, eris.Wrapf(err, "report: cert %s", cert)
		}
		banks = append(banks, bankData{cert: cert, name: name, records: records})
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
	}

	progress(StageNormalize)
	sets := make([]*model.StatementSet, 0, len(banks))
	for _, bank := range banks {
		set, err := b.norm.Normalize(bank.cert, bank.name, bank.records)
		if err != nil {
			return nil, eris.Wrapf(err, "report: cert %s", bank.cert)
		}
		sets = append(sets, set)
	}
	log.Info("report: normalized call reports", zap.Int("banks", len(sets)))
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	progress(StageSynthesize)
	data, err := workbook.Synthesize(sets, workbook.Options{GeneratedAt: b.now(), Qualify: true})
	if err != nil {
		return nil, eris.Wrap(err, "report: synthesize")
	}

	return &model.Artifact{
		Data:     data,
		Filename: fmt.Sprintf("FDIC_Financials_%s.xlsx", strings.Join(certs, "_")),
	}, nil
}

// checkpoint is where a cancelled or timed-out job is acknowledged between
// pipeline stages.
func checkpoint(ctx context.Context) error {
	return ctx.Err()
}
