package universe

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		market string
		in     string
		want   string
	}{
		{MarketIDX, "bbca", "BBCA.JK"},
		{MarketIDX, " BBRI.JK ", "BBRI.JK"},
		{MarketIDX, "^JKSE", "^JKSE"},
		{MarketIDX, "", ""},
		{MarketUS, "aapl", "AAPL"},
		{MarketUS, "brk-b", "BRK-B"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.market, tt.in); got != tt.want {
			t.Errorf("Normalize(%s, %q) = %q, want %q", tt.market, tt.in, got, tt.want)
		}
	}
}

func TestParseTickers(t *testing.T) {
	got := ParseTickers(MarketIDX, "bbca, bbri;tlkm\nBBCA  goto,,")
	want := []string{"BBCA.JK", "BBRI.JK", "TLKM.JK", "GOTO.JK"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTickers = %v, want %v", got, want)
	}
	if got := ParseTickers(MarketIDX, " , \n"); len(got) != 0 {
		t.Errorf("expected no tickers, got %v", got)
	}
}

func TestMergeKeepsOrder(t *testing.T) {
	got := Merge([]string{"A", "B", "A"}, []string{"C", "B"}, []string{"", "D"})
	want := []string{"A", "B", "C", "D"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Merge = %v, want %v", got, want)
	}
}

func TestBuiltinSizes(t *testing.T) {
	r := NewRegistry(nil)
	lq, err := r.Lookup("lq45")
	if err != nil {
		t.Fatalf("lookup LQ45: %v", err)
	}
	if len(lq.Tickers) != 45 {
		t.Errorf("LQ45 has %d tickers, want 45", len(lq.Tickers))
	}
	idx, _ := r.Lookup("IDX30")
	if len(idx.Tickers) != 30 {
		t.Errorf("IDX30 has %d tickers, want 30", len(idx.Tickers))
	}
	for _, tk := range lq.Tickers {
		if MarketOf(tk) != MarketIDX {
			t.Errorf("%s should be an IDX ticker", tk)
		}
	}
}

func TestRegistryCustomAndUnknown(t *testing.T) {
	r := NewRegistry([]Universe{
		{Name: "mine", Tickers: []string{"bbca", "BBCA.JK", "asii"}},
		{Name: "techs", Market: "us", Tickers: []string{"aapl", "nvda"}},
	})
	mine, err := r.Lookup("MINE")
	if err != nil {
		t.Fatalf("lookup custom: %v", err)
	}
	if mine.Market != MarketIDX || !reflect.DeepEqual(mine.Tickers, []string{"BBCA.JK", "ASII.JK"}) {
		t.Errorf("unexpected custom universe: %+v", mine)
	}
	techs, _ := r.Lookup("techs")
	if techs.Market != MarketUS || techs.Tickers[0] != "AAPL" {
		t.Errorf("unexpected US universe: %+v", techs)
	}

	if _, err := r.Lookup("nope"); !errors.Is(err, ErrUnknownUniverse) {
		t.Errorf("expected ErrUnknownUniverse, got %v", err)
	}

	// Lookup hands out copies.
	mine.Tickers[0] = "XXXX"
	again, _ := r.Lookup("mine")
	if again.Tickers[0] != "BBCA.JK" {
		t.Error("registry was mutated through a lookup result")
	}
}

func TestCode(t *testing.T) {
	if got := Code("bbca.jk"); got != "BBCA" {
		t.Errorf("Code = %q", got)
	}
}

type fakeSource map[string][]string

func (f fakeSource) Universe(name string) (Universe, error) {
	t, ok := f[name]
	if !ok {
		return Universe{}, ErrUnknownUniverse
	}
	return Universe{Name: WatchlistPrefix + name, Market: MarketIDX, Tickers: t}, nil
}

func TestResolve(t *testing.T) {
	r := NewRegistry(nil)
	src := fakeSource{"core": {"BBCA.JK"}}

	u, err := r.Resolve("watchlist:core", "bbri, bbca", src)
	if err != nil {
		t.Fatalf("Resolve watchlist: %v", err)
	}
	if !reflect.DeepEqual(u.Tickers, []string{"BBCA.JK", "BBRI.JK"}) {
		t.Errorf("watchlist tickers = %v", u.Tickers)
	}

	u, err = r.Resolve("", "tlkm asii", nil)
	if err != nil || u.Name != "custom" || len(u.Tickers) != 2 {
		t.Errorf("free-text universe = %+v, %v", u, err)
	}

	u, _ = r.Resolve("us_megacap", "amd", nil)
	if u.Tickers[len(u.Tickers)-1] != "AMD" {
		t.Errorf("extra ticker not appended: %v", u.Tickers)
	}

	if _, err := r.Resolve("", " ", nil); !errors.Is(err, ErrEmptyUniverse) {
		t.Errorf("expected ErrEmptyUniverse, got %v", err)
	}
	if _, err := r.Resolve("watchlist:core", "", nil); !errors.Is(err, ErrUnknownUniverse) {
		t.Errorf("expected ErrUnknownUniverse without a source, got %v", err)
	}
}
