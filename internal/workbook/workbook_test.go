package workbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleSet(entity, name string) *model.StatementSet {
	bs := model.Statement{
		Type:  model.BalanceSheet,
		Items: []string{"CashAndEquivalents", "TotalAssets"},
		Periods: []model.Period{
			{
				End: day(2024, time.June, 30),
				Items: map[string]model.Value{
					"CashAndEquivalents": {Amount: 1_200_000, Reported: true},
					"TotalAssets":        {Amount: 9_800_000, Reported: true},
				},
			},
			{
				End: day(2024, time.March, 31),
				Items: map[string]model.Value{
					"CashAndEquivalents": {Amount: 1_100_000, Reported: true},
					"TotalAssets":        {}, // never reported
				},
			},
		},
	}
	is := model.Statement{
		Type:  model.IncomeStatement,
		Items: []string{"NetIncome"},
		Periods: []model.Period{
			{
				End:   day(2024, time.June, 30),
				Items: map[string]model.Value{"NetIncome": {Amount: 250_000, Reported: true}},
			},
		},
	}
	return &model.StatementSet{
		Entity:     entity,
		EntityName: name,
		Statements: map[model.StatementType]model.Statement{
			model.BalanceSheet:    bs,
			model.IncomeStatement: is,
			model.CashFlow:        {Type: model.CashFlow},
		},
	}
}

func TestSynthesize_RoundTrip(t *testing.T) {
	set := sampleSet("AAPL", "Apple Inc.")
	data, err := Synthesize([]*model.StatementSet{set}, Options{GeneratedAt: day(2024, time.July, 1)})
	require.NoError(t, err)

	names, err := SheetNames(data)
	require.NoError(t, err)
	assert.Contains(t, names, "Summary")
	assert.Contains(t, names, "Balance Sheet")
	assert.Contains(t, names, "Income Statement")
	assert.NotContains(t, names, "Cash Flow", "empty statements are omitted")

	grid, err := ReadGrid(data, "Balance Sheet")
	require.NoError(t, err)

	require.Contains(t, grid, "CashAndEquivalents")
	assert.Equal(t, float64(1_200_000), grid["CashAndEquivalents"]["Jun 2024"])
	assert.Equal(t, float64(1_100_000), grid["CashAndEquivalents"]["Mar 2024"])

	// Not-reported renders as a truly empty cell, not zero.
	require.Contains(t, grid, "TotalAssets")
	_, ok := grid["TotalAssets"]["Mar 2024"]
	assert.False(t, ok)
	assert.Equal(t, float64(9_800_000), grid["TotalAssets"]["Jun 2024"])
}

func TestSynthesize_Deterministic(t *testing.T) {
	sets := []*model.StatementSet{sampleSet("AAPL", "Apple Inc.")}
	opts := Options{GeneratedAt: day(2024, time.July, 1)}

	a, err := Synthesize(sets, opts)
	require.NoError(t, err)
	b, err := Synthesize(sets, opts)
	require.NoError(t, err)

	ga, err := ReadGrid(a, "Balance Sheet")
	require.NoError(t, err)
	gb, err := ReadGrid(b, "Balance Sheet")
	require.NoError(t, err)
	assert.Equal(t, ga, gb)

	na, err := SheetNames(a)
	require.NoError(t, err)
	nb, err := SheetNames(b)
	require.NoError(t, err)
	assert.Equal(t, na, nb)
}

func TestSynthesize_MultiEntityQualifiesSheets(t *testing.T) {
	sets := []*model.StatementSet{
		sampleSet("1105", "First Example Bank"),
		sampleSet("2214", "Second Example Bank"),
	}
	data, err := Synthesize(sets, Options{GeneratedAt: day(2024, time.July, 1)})
	require.NoError(t, err)

	names, err := SheetNames(data)
	require.NoError(t, err)
	assert.Contains(t, names, "Balance Sheet-1105")
	assert.Contains(t, names, "Balance Sheet-2214")
	assert.Contains(t, names, "Income Statement-1105")

	grid, err := ReadGrid(data, "Balance Sheet-2214")
	require.NoError(t, err)
	assert.Equal(t, float64(9_800_000), grid["TotalAssets"]["Jun 2024"])
}

func TestSynthesize_SheetTitles(t *testing.T) {
	single, err := Synthesize([]*model.StatementSet{sampleSet("AAPL", "Apple Inc.")}, Options{})
	require.NoError(t, err)

	title, err := SheetTitle(single, "Balance Sheet")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", title, "single-entity sheets carry the bare name")

	multi, err := Synthesize([]*model.StatementSet{
		sampleSet("1105", "First Example Bank"),
		sampleSet("2214", "Second Example Bank"),
	}, Options{})
	require.NoError(t, err)

	title, err = SheetTitle(multi, "Balance Sheet-1105")
	require.NoError(t, err)
	assert.Equal(t, "First Example Bank-1105", title)

	title, err = SheetTitle(multi, "Income Statement-2214")
	require.NoError(t, err)
	assert.Equal(t, "Second Example Bank-2214", title)
}

func TestSynthesize_NoSets(t *testing.T) {
	_, err := Synthesize(nil, Options{})
	assert.Error(t, err)
}

func TestSheetName_Truncates(t *testing.T) {
	name := sheetName(model.IncomeStatement, "123456789012345", true)
	assert.LessOrEqual(t, len(name), 31)
	assert.Contains(t, name, "-123456789012345")
}

func TestReadGrid_MissingSheet(t *testing.T) {
	data, err := Synthesize([]*model.StatementSet{sampleSet("AAPL", "")}, Options{})
	require.NoError(t, err)
	_, err = ReadGrid(data, "Nope")
	assert.Error(t, err)
}
