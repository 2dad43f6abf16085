package kwdata_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/paveg/kwdata"
	"github.com/paveg/kwdata/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFramework(t *testing.T, opts ...kwdata.Option) *kwdata.Framework {
	t.Helper()

	opts = append([]kwdata.Option{
		kwdata.WithLogger(zerolog.Nop()),
		kwdata.WithInputLocation(time.UTC),
	}, opts...)
	f, err := kwdata.New(opts...)
	require.NoError(t, err)

	require.NoError(t, f.Register(kwdata.Keyword{
		Name:   "transfer",
		Doc:    "Transfers an amount between accounts.",
		Params: []kwdata.Param{kwdata.Mandatory("FROM"), kwdata.Mandatory("TO"), kwdata.Optional("AMOUNT", int64(10))},
	}))
	return f
}

func TestRunKeyword(t *testing.T) {
	f := newFramework(t)

	var got *kwdata.Dataset
	require.NoError(t, f.Bind("transfer", func(_ context.Context, data *kwdata.Dataset) error {
		got = data
		return nil
	}))

	t.Run("defaults applied", func(t *testing.T) {
		require.NoError(t, f.RunKeyword(context.Background(), "transfer", []any{"a", "b"}, nil))
		testutil.AssertDataset(t, got, 1, []string{"FROM", "TO", "AMOUNT"})
		testutil.AssertColumn(t, got, "AMOUNT", int64(10))
	})

	t.Run("one run per row", func(t *testing.T) {
		err := f.RunKeyword(context.Background(), "TRANSFER", nil, map[string]any{
			"DATA_FILE": testutil.WriteFile(t, t.TempDir(), "t.csv", "FROM,TO,AMOUNT\na,b,1\nc,d,2\n"),
			"NOTE":      "ev:FROM + TO",
		})
		require.NoError(t, err)
		testutil.AssertColumn(t, got, "NOTE", "ab", "cd")
		testutil.AssertColumn(t, got, "AMOUNT", int64(1), int64(2))
	})

	t.Run("missing mandatory field", func(t *testing.T) {
		err := f.RunKeyword(context.Background(), "transfer", nil, map[string]any{"FROM": "a"})
		require.Error(t, err)
		assert.ErrorIs(t, err, kwdata.ErrMissingFields)
		assert.Contains(t, err.Error(), "TO")
	})

	t.Run("handler error", func(t *testing.T) {
		boom := stderrors.New("boom")
		require.NoError(t, f.Bind("transfer", func(context.Context, *kwdata.Dataset) error { return boom }))
		assert.ErrorIs(t, f.RunKeyword(context.Background(), "transfer", []any{"a", "b"}, nil), boom)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, f.RunKeyword(ctx, "transfer", []any{"a", "b"}, nil), context.Canceled)
	})

	t.Run("unknown keyword", func(t *testing.T) {
		assert.ErrorIs(t, f.RunKeyword(context.Background(), "nope", nil, nil), kwdata.ErrNotFound)
	})
}

func TestRunKeywordWithoutHandler(t *testing.T) {
	f := newFramework(t)
	err := f.RunKeyword(context.Background(), "transfer", []any{"a", "b"}, nil)
	assert.ErrorIs(t, err, kwdata.ErrNotSupported)
}

func TestGetDataAndValidate(t *testing.T) {
	f := newFramework(t)

	data, err := f.GetData("transfer", []any{"a"}, map[string]any{"to": "b"})
	require.NoError(t, err)
	assert.NoError(t, f.ValidateData(data, "transfer"))

	data, err = f.GetData("transfer", []any{"a"}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, f.ValidateData(data, "transfer"), kwdata.ErrMissingFields)
}

func TestSettings(t *testing.T) {
	f := newFramework(t)

	require.NoError(t, f.UpdateSettings(map[string]any{"eval_indicator": "=", "CASE_SENSITIVE": true}))
	s := f.Settings()
	assert.Equal(t, "=", s.EvalIndicator)
	assert.True(t, s.CaseSensitive)

	err := f.UpdateSettings(map[string]any{"ROW_INDEX_BASE": 7})
	assert.ErrorIs(t, err, kwdata.ErrInvalidSetting)
	assert.Equal(t, 0, f.Settings().RowIndexBase)

	t.Run("invalid initial settings", func(t *testing.T) {
		s := kwdata.DefaultSettings()
		s.CSVSep = ";;"
		_, err := kwdata.New(kwdata.WithSettings(s))
		assert.ErrorIs(t, err, kwdata.ErrInvalidSetting)
	})

	t.Run("settings-built logger", func(t *testing.T) {
		var buf bytes.Buffer
		s := kwdata.DefaultSettings()
		s.LogLevel = "info"
		g, err := kwdata.New(kwdata.WithSettings(s), kwdata.WithLogOutput(&buf))
		require.NoError(t, err)

		_, err = g.GetData("any", nil, map[string]any{"-CSV_SEP": ";"})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "applied setting override")
		assert.Contains(t, buf.String(), `"call_id"`)
	})
}

func TestKeywordIntrospection(t *testing.T) {
	f := newFramework(t)

	assert.Equal(t, []string{"transfer"}, f.KeywordNames())

	args, err := f.KeywordArguments("transfer", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"FROM=()", "TO=()", "AMOUNT=10"}, args)

	args, err = f.KeywordArguments("transfer", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"FROM", "TO", "AMOUNT"}, args)

	doc, err := f.KeywordDocumentation("transfer")
	require.NoError(t, err)
	assert.Equal(t, "Transfers an amount between accounts.", doc)

	_, err = f.KeywordDocumentation("nope")
	assert.ErrorIs(t, err, kwdata.ErrNotFound)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "bank/accounts.kw.yaml", `keywords:
  - name: open_account
    mandatory: [OWNER]
    optional:
      - name: CURRENCY
        default: EUR
`)
	testutil.WriteFile(t, dir, "bank/notes.yaml", "not: a manifest\n")

	s := kwdata.DefaultSettings()
	s.Locations = []string{dir}
	f, err := kwdata.New(kwdata.WithSettings(s), kwdata.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Equal(t, []string{"open_account"}, f.KeywordNames())

	var owners []any
	require.NoError(t, f.Bind("open_account", func(_ context.Context, data *kwdata.Dataset) error {
		owners, _ = data.Column("OWNER")
		currency, _ := data.Column("CURRENCY")
		assert.Equal(t, []any{"EUR"}, currency)
		return nil
	}))
	require.NoError(t, f.RunKeyword(context.Background(), "open_account", []any{"ann"}, nil))
	assert.Equal(t, []any{"ann"}, owners)
}

func TestCSVRoundTrip(t *testing.T) {
	f := newFramework(t)
	require.NoError(t, f.UpdateSettings(map[string]any{"CSV_SEP": ";"}))

	path := testutil.SampleCSV(t, testutil.WithSeparator(";"))
	data, err := f.LoadCSV(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf, data))
	assert.Equal(t, "X;Y;Z\n1;2;3\n4;5;6\n7;8;9\n", buf.String())
}
