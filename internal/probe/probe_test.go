package probe

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/cleaning"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/config"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

func fixture() string { return filepath.Join("testdata", "titanic_head.csv") }

func strategy(s *config.Section) []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Strategy))
	for _, a := range s.Strategy {
		out = append(out, a.Column+"="+a.Raw)
	}
	return out
}

func TestProbeFile_SuggestsTitanicRules(t *testing.T) {
	t.Parallel()

	res, err := ProbeFile(fixture(), Options{})
	require.NoError(t, err)
	assert.False(t, res.Truncated)

	r := res.Rules
	assert.Equal(t, []string{"PassengerId", "Name", "Ticket", "Cabin"}, r.DropColumns)
	assert.Equal(t, []string{"Age=median"}, strategy(r.MissingValues))
	assert.Equal(t, []string{"Sex=label", "Embarked=onehot"}, strategy(r.Encoding))
	assert.Equal(t, []string{"Age=standard", "SibSp=standard", "Fare=standard"}, strategy(r.Scaling))

	assert.False(t, config.HasErrors(config.Validate(r)), "suggested rules must validate: %v", config.Validate(r))
}

func TestSuggestedRulesRunThroughPipeline(t *testing.T) {
	t.Parallel()

	res, err := ProbeFile(fixture(), Options{Scaling: config.MethodMinMax})
	require.NoError(t, err)

	p, err := cleaning.New(fixture(), res.Rules)
	require.NoError(t, err)
	out, err := p.Run()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Survived", "Pclass", "Sex", "Age", "SibSp", "Parch", "Fare",
		"Embarked_C", "Embarked_Q", "Embarked_S",
	}, out.Names())

	age, _ := out.Column("Age")
	assert.Zero(t, age.NullCount())
}

func TestSuggest_StatsAndActions(t *testing.T) {
	t.Parallel()

	tbl, err := table.LoadCSV(fixture(), table.ReadOptions{})
	require.NoError(t, err)

	_, st := Suggest(tbl, Options{})
	require.Equal(t, 8, st.SampledRows)
	require.Len(t, st.Columns, 12)

	byName := map[string]ColumnStats{}
	for _, c := range st.Columns {
		byName[c.Name] = c
	}

	cabin := byName["Cabin"]
	assert.Equal(t, 3, cabin.Present)
	assert.Equal(t, 5, cabin.Missing)
	assert.True(t, strings.HasPrefix(cabin.Action, "drop ("), cabin.Action)

	assert.Equal(t, "drop (identifier)", byName["PassengerId"].Action)
	assert.Equal(t, "median, standard", byName["Age"].Action)
	assert.Equal(t, "keep", byName["Survived"].Action)
	assert.Equal(t, 3, byName["Embarked"].Distinct)
	assert.InDelta(t, 3.0/8.0, byName["Embarked"].Ratio(), 1e-12)
}

func TestSuggest_SmallSamplesKeepUniqueColumns(t *testing.T) {
	t.Parallel()

	tbl, err := table.ReadCSV(strings.NewReader("id,city\n1,Oslo\n2,Rome\n3,\n"), table.ReadOptions{})
	require.NoError(t, err)

	r, _ := Suggest(tbl, Options{})
	assert.Empty(t, r.DropColumns)
	assert.Equal(t, []string{"city=mode"}, strategy(r.MissingValues))
	assert.Equal(t, []string{"city=label"}, strategy(r.Encoding))
	assert.Equal(t, []string{"id=standard"}, strategy(r.Scaling))
}

func TestSuggest_WideTextIsLabelEncoded(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("grade\n")
	for i := 0; i < 40; i++ {
		b.WriteString(string(rune('a' + i%13)))
		b.WriteString("\n")
	}
	tbl, err := table.ReadCSV(strings.NewReader(b.String()), table.ReadOptions{})
	require.NoError(t, err)

	r, _ := Suggest(tbl, Options{MaxOneHot: 5})
	assert.Equal(t, []string{"grade=label"}, strategy(r.Encoding))
}

func TestSample_CutsAtLastNewline(t *testing.T) {
	t.Parallel()

	in := "a,b\n1,2\n3,4\n"
	got, truncated, err := Sample(strings.NewReader(in), 10)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, "a,b\n1,2\n", string(got))

	got, truncated, err = Sample(strings.NewReader(in), len(in))
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, in, string(got))
}

func TestProbe_TruncatedSampleParses(t *testing.T) {
	t.Parallel()

	res, err := ProbeFile(fixture(), Options{MaxBytes: 300})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Greater(t, res.Stats.SampledRows, 0)
	assert.Less(t, res.Stats.SampledRows, 8)
}

func TestProbe_Errors(t *testing.T) {
	t.Parallel()

	_, err := Probe(strings.NewReader("  \n"), Options{})
	assert.ErrorIs(t, err, ErrNoHeader)

	_, err = ProbeFile(filepath.Join(t.TempDir(), "absent.csv"), Options{})
	assert.True(t, errors.Is(err, fs.ErrNotExist), "err=%v", err)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	res, err := ProbeFile(fixture(), Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.Stats.WriteReport(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "sampled rows: 8\n"), out)
	assert.Contains(t, out, "suggestion")
	assert.Contains(t, out, "drop (identifier)")
	assert.Contains(t, out, "37.5%")

	buf.Reset()
	require.NoError(t, Uniqueness{}.WriteReport(&buf))
	assert.Equal(t, "uniqueness: no rows sampled\n", buf.String())
}
