package normalize

import (
	_ "embed"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/filings-cli/internal/model"
)

//go:embed aliases.yaml
var aliasYAML []byte

// Target is the resolution of a source label: the statement it belongs to
// and the canonical line item it feeds.
type Target struct {
	Statement model.StatementType
	Item      string
}

// AliasTable is the static, versioned many-to-one mapping from source labels
// to canonical line items. It is immutable after load and safe for
// concurrent use.
type AliasTable struct {
	Version int
	targets map[string]Target                // folded alias -> target
	order   map[model.StatementType][]string // display order per statement
}

type aliasDoc struct {
	Version    int `yaml:"version"`
	Statements []struct {
		Type  string `yaml:"type"`
		Items []struct {
			Name    string   `yaml:"name"`
			Aliases []string `yaml:"aliases"`
		} `yaml:"items"`
	} `yaml:"statements"`
}

var foldChain = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)

// FoldLabel reduces a source label to its lookup key: unicode-normalized,
// diacritics stripped, case-folded, inner whitespace collapsed.
func FoldLabel(label string) string {
	s, _, err := transform.String(foldChain, label)
	if err != nil {
		s = label
	}
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// LoadAliasTable parses the embedded alias document.
func LoadAliasTable() (*AliasTable, error) {
	return parseAliasTable(aliasYAML)
}

func parseAliasTable(raw []byte) (*AliasTable, error) {
	var doc aliasDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrap(err, "normalize: parse alias table")
	}
	if doc.Version < 1 {
		return nil, eris.Errorf("normalize: alias table missing version")
	}

	t := &AliasTable{
		Version: doc.Version,
		targets: make(map[string]Target),
		order:   make(map[model.StatementType][]string),
	}

	for _, st := range doc.Statements {
		stype := model.StatementType(st.Type)
		switch stype {
		case model.BalanceSheet, model.IncomeStatement, model.CashFlow, model.Equity:
		default:
			return nil, eris.Errorf("normalize: alias table: unknown statement type %q", st.Type)
		}
		for _, item := range st.Items {
			if item.Name == "" {
				return nil, eris.Errorf("normalize: alias table: unnamed item in %q", st.Type)
			}
			t.order[stype] = append(t.order[stype], item.Name)
			for _, a := range item.Aliases {
				key := FoldLabel(a)
				if prev, dup := t.targets[key]; dup && (prev.Item != item.Name || prev.Statement != stype) {
					return nil, eris.Errorf("normalize: alias table: alias %q maps to both %s and %s", a, prev.Item, item.Name)
				}
				t.targets[key] = Target{Statement: stype, Item: item.Name}
			}
		}
	}

	return t, nil
}

// Resolve maps a source label to its canonical target.
func (t *AliasTable) Resolve(label string) (Target, bool) {
	tgt, ok := t.targets[FoldLabel(label)]
	return tgt, ok
}

// DisplayOrder returns the prescribed row order for a statement.
func (t *AliasTable) DisplayOrder(s model.StatementType) []string {
	return t.order[s]
}
