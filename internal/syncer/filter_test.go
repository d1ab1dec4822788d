package syncer

import (
	"testing"
	"time"

	"github.com/david/bdns-notifier/internal/bdns"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := LoadRules()
	if err != nil {
		t.Fatalf("loading embedded rules: %v", err)
	}
	return rules
}

func qualifyingDetail() *bdns.Detail {
	deadline := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &bdns.Detail{
		ExternalID:     "829202",
		Title:          "Ayudas a proyectos de I+D+i",
		ApplicationEnd: &deadline,
		IssuingBody:    "MINISTERIO DE CIENCIA E INNOVACIÓN",
		RegionNames:    []string{"ES - ESPAÑA"},
	}
}

func TestQualify(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(d *bdns.Detail)
		wantOK     bool
		wantReason string
	}{
		{
			name:   "relevant national call passes",
			mutate: func(d *bdns.Detail) {},
			wantOK: true,
		},
		{
			name: "keyword match on deeper organ level",
			mutate: func(d *bdns.Detail) {
				d.IssuingBody = "GOBIERNO DE CANARIAS"
				d.IssuingLevel2 = "Consejería de Universidades"
				d.RegionNames = []string{"ES70 - Canarias"}
			},
			wantOK: true,
		},
		{
			name:   "no explicit regions passes the region check",
			mutate: func(d *bdns.Detail) { d.RegionNames = nil },
			wantOK: true,
		},
		{
			name:       "missing deadline rejected first",
			mutate:     func(d *bdns.Detail) { d.ApplicationEnd = nil },
			wantOK:     false,
			wantReason: ReasonNoDeadline,
		},
		{
			name: "deadline check precedes keyword check",
			mutate: func(d *bdns.Detail) {
				d.ApplicationEnd = nil
				d.IssuingBody = "MINISTERIO DE AGRICULTURA"
			},
			wantOK:     false,
			wantReason: ReasonNoDeadline,
		},
		{
			name:       "issuing body without keywords rejected",
			mutate:     func(d *bdns.Detail) { d.IssuingBody = "MINISTERIO DE AGRICULTURA, PESCA Y ALIMENTACIÓN" },
			wantOK:     false,
			wantReason: ReasonOffDomain,
		},
		{
			name:   "keyword matching ignores case",
			mutate: func(d *bdns.Detail) { d.IssuingBody = "agencia estatal de investigación" },
			wantOK: true,
		},
		{
			name:       "foreign-region call rejected",
			mutate:     func(d *bdns.Detail) { d.RegionNames = []string{"ES51 - Cataluña"} },
			wantOK:     false,
			wantReason: ReasonRegionExcluded,
		},
		{
			name: "one allowed region among several is enough",
			mutate: func(d *bdns.Detail) {
				d.RegionNames = []string{"ES51 - Cataluña", "ES70 - Canarias"}
			},
			wantOK: true,
		},
	}

	rules := testRules(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := qualifyingDetail()
			tt.mutate(d)
			ok, reason := Qualify(d, rules)
			if ok != tt.wantOK {
				t.Errorf("expected ok=%v, got %v (reason %q)", tt.wantOK, ok, reason)
			}
			if !tt.wantOK && reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, reason)
			}
		})
	}
}

func TestParseRulesRejectsEmptyKeywords(t *testing.T) {
	if _, err := ParseRules([]byte("keywords: []\n")); err == nil {
		t.Fatal("expected error for empty keyword list")
	}
}
