package report

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/normalize"
	"github.com/sells-group/filings-cli/internal/source"
	"github.com/sells-group/filings-cli/internal/workbook"
)

type fakeAdapter struct {
	records map[string][]model.RawRecord
	names   map[string]string
	err     error
	calls   []string
}

func (f *fakeAdapter) Fetch(_ context.Context, entity string) ([]model.RawRecord, string, error) {
	f.calls = append(f.calls, entity)
	if f.err != nil {
		return nil, "", f.err
	}
	recs, ok := f.records[entity]
	if !ok {
		return nil, "", source.ErrEntityNotFound
	}
	return recs, f.names[entity], nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testRecords() []model.RawRecord {
	return []model.RawRecord{
		{SourceLabel: "Cash", PeriodEnd: day(2024, time.June, 30), Value: 1200, Scale: model.ScaleThousands, Seq: 0},
		{SourceLabel: "NetIncomeLoss", PeriodEnd: day(2024, time.June, 30), Value: 250, Scale: model.ScaleThousands, Seq: 1},
	}
}

func newBuilder(t *testing.T, sec, fdic source.Adapter) *Builder {
	t.Helper()
	table, err := normalize.LoadAliasTable()
	require.NoError(t, err)
	b := NewBuilder(sec, fdic, normalize.New(table))
	b.now = func() time.Time { return day(2024, time.July, 1) }
	return b
}

func TestBuild_SEC(t *testing.T) {
	sec := &fakeAdapter{
		records: map[string][]model.RawRecord{"AAPL": testRecords()},
		names:   map[string]string{"AAPL": "Apple Inc."},
	}
	b := newBuilder(t, sec, &fakeAdapter{})

	var stages []string
	art, err := b.Build(context.Background(), model.KindSEC, model.JobParams{Ticker: "aapl"}, func(s string) {
		stages = append(stages, s)
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL_10Q_Financials.xlsx", art.Filename)
	assert.Equal(t, []string{StageFetch, StageNormalize, StageSynthesize}, stages)
	assert.Equal(t, []string{"AAPL"}, sec.calls, "ticker is uppercased before fetch")

	grid, err := workbook.ReadGrid(art.Data, "Balance Sheet")
	require.NoError(t, err)
	assert.Equal(t, float64(1_200_000), grid["CashAndEquivalents"]["Jun 2024"])
}

func TestBuild_FDICMultiCert(t *testing.T) {
	fdic := &fakeAdapter{
		records: map[string][]model.RawRecord{
			"1105": testRecords(),
			"2214": testRecords(),
		},
		names: map[string]string{"1105": "First Example Bank", "2214": "Second Example Bank"},
	}
	b := newBuilder(t, &fakeAdapter{}, fdic)

	art, err := b.Build(context.Background(), model.KindFDIC, model.JobParams{Certs: []string{"1105", "2214"}}, nil)
	require.NoError(t, err)

	assert.Equal(t, "FDIC_Financials_1105_2214.xlsx", art.Filename)
	assert.Equal(t, []string{"1105", "2214"}, fdic.calls)

	names, err := workbook.SheetNames(art.Data)
	require.NoError(t, err)
	assert.Contains(t, names, "Balance Sheet-1105")
	assert.Contains(t, names, "Balance Sheet-2214")
}

func TestBuild_UnknownCertFailsWholeJob(t *testing.T) {
	fdic := &fakeAdapter{
		records: map[string][]model.RawRecord{"1105": testRecords()},
		names:   map[string]string{"1105": "First Example Bank"},
	}
	b := newBuilder(t, &fakeAdapter{}, fdic)

	_, err := b.Build(context.Background(), model.KindFDIC, model.JobParams{Certs: []string{"1105", "9999"}}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrEntityNotFound)
	assert.Contains(t, err.Error(), "9999")
}

func TestBuild_SourceUnavailable(t *testing.T) {
	sec := &fakeAdapter{err: eris.Wrap(source.ErrSourceUnavailable, "sec: status 502")}
	b := newBuilder(t, sec, &fakeAdapter{})

	_, err := b.Build(context.Background(), model.KindSEC, model.JobParams{Ticker: "AAPL"}, nil)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestBuild_CancelledAtCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sec := &fakeAdapter{
		records: map[string][]model.RawRecord{"AAPL": testRecords()},
		names:   map[string]string{"AAPL": "Apple Inc."},
	}
	b := newBuilder(t, sec, &fakeAdapter{})

	_, err := b.Build(ctx, model.KindSEC, model.JobParams{Ticker: "AAPL"}, func(s string) {
		if s == StageNormalize {
			cancel()
		}
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_UnknownKind(t *testing.T) {
	b := newBuilder(t, &fakeAdapter{}, &fakeAdapter{})
	_, err := b.Build(context.Background(), model.JobKind("csv"), model.JobParams{}, nil)
	assert.Error(t, err)
}
