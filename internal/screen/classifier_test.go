package screen

import (
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/logging"
	"github.com/CodexForgeBR/autobattle/internal/vision"
)

func init() {
	color.NoColor = true
}

// MockFinder reports a fixed set of refs as visible and counts lookups.
type MockFinder struct {
	mu      sync.Mutex
	Visible map[vision.Ref]bool
	Missing map[vision.Ref]bool
	Calls   map[vision.Ref]int
}

func newMockFinder(visible ...vision.Ref) *MockFinder {
	f := &MockFinder{Visible: map[vision.Ref]bool{}, Missing: map[vision.Ref]bool{}, Calls: map[vision.Ref]int{}}
	for _, r := range visible {
		f.Visible[r] = true
	}
	return f
}

func (f *MockFinder) Find(_ image.Image, ref vision.Ref, _ float64) (vision.Result, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[ref]++
	if f.Missing[ref] {
		return vision.Result{}, false, fmt.Errorf("%w: %s", vision.ErrTemplateMissing, ref)
	}
	if f.Visible[ref] {
		return vision.Result{X: 10, Y: 20, Score: 0.9}, true, nil
	}
	return vision.Result{Score: 0.1}, false, nil
}

var blank = image.NewNRGBA(image.Rect(0, 0, 4, 4))

func newTestClassifier(f *MockFinder) *Classifier {
	return NewClassifier(f, expansion.DefaultCatalogs(), 0, logging.Logger{})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "BattleSelection", BattleSelection.String())
	assert.Equal(t, "OptionalPopup", OptionalPopup.String())
	assert.Equal(t, "Unknown", State(99).String())
	assert.Len(t, States(), 11)
}

func TestClassifySingleMarker(t *testing.T) {
	tests := []struct {
		marker vision.Ref
		want   State
	}{
		{PopupOK, OptionalPopup},
		{DefeatBack, DefeatPopup},
		{SummaryNext, Summary},
		{Defeat, DefeatScreen},
		{CatalogClose, ExpansionSelection},
		{EntryRef(expansion.Key{Series: expansion.SeriesA, Name: "GA"}), ExpansionSelection},
		{EntryRef(expansion.Key{Series: expansion.SeriesB, Name: "MR"}), ExpansionSelection},
		{ExpansionsButton, BattleSelection},
		{Opponent, BattleInProgress},
		{PutBasic, BattleInProgress},
		{AutoOff, BattleSetup},
		{RewardsProceed, RewardsSequence},
		{ResultProceed, ResultScreen},
		{Hourglass, BattleSelection},
	}

	for _, tt := range tests {
		t.Run(tt.marker.String(), func(t *testing.T) {
			c := newTestClassifier(newMockFinder(tt.marker))
			assert.Equal(t, tt.want, c.Classify(blank))
		})
	}
}

func TestClassifyNoMarkersIsUnknown(t *testing.T) {
	c := newTestClassifier(newMockFinder())
	assert.Equal(t, Unknown, c.Classify(blank))
}

func TestClassifyMarkersWithoutOwnScreen(t *testing.T) {
	// battle.png recurs on other screens and is not evidence on its own.
	for _, ref := range []vision.Ref{BattleStart, AutoOffInBattle, SeriesButton(expansion.SeriesA)} {
		t.Run(ref.String(), func(t *testing.T) {
			c := newTestClassifier(newMockFinder(ref))
			assert.Equal(t, Unknown, c.Classify(blank))
		})
	}
}

func TestPopupPrecedesEverything(t *testing.T) {
	others := []vision.Ref{
		DefeatBack, SummaryNext, Defeat, CatalogClose, ExpansionsButton,
		Opponent, PutBasic, AutoOff, RewardsProceed, ResultProceed, Hourglass,
		EntryRef(expansion.Key{Series: expansion.SeriesA, Name: "TL"}),
	}
	for _, other := range others {
		t.Run(other.String(), func(t *testing.T) {
			c := newTestClassifier(newMockFinder(PopupOK, other))
			assert.Equal(t, OptionalPopup, c.Classify(blank))
		})
	}
}

func TestCatalogEntryWithButtonIsBattleSelection(t *testing.T) {
	entry := EntryRef(expansion.Key{Series: expansion.SeriesA, Name: "SR"})
	c := newTestClassifier(newMockFinder(entry, ExpansionsButton))
	assert.Equal(t, BattleSelection, c.Classify(blank))
}

func TestCloseButtonWinsOverExpansionsButton(t *testing.T) {
	c := newTestClassifier(newMockFinder(CatalogClose, ExpansionsButton))
	assert.Equal(t, ExpansionSelection, c.Classify(blank))
}

func TestAutoWithButtonIsBattleSelection(t *testing.T) {
	c := newTestClassifier(newMockFinder(AutoOff, ExpansionsButton))
	assert.Equal(t, BattleSelection, c.Classify(blank))
}

func TestCascadeOrder(t *testing.T) {
	tests := []struct {
		name    string
		visible []vision.Ref
		want    State
	}{
		{"defeat popup over summary", []vision.Ref{DefeatBack, SummaryNext}, DefeatPopup},
		{"summary over defeat", []vision.Ref{SummaryNext, Defeat}, Summary},
		{"defeat over result", []vision.Ref{Defeat, ResultProceed}, DefeatScreen},
		{"in progress over setup", []vision.Ref{Opponent, AutoOff}, BattleInProgress},
		{"rewards over result", []vision.Ref{RewardsProceed, ResultProceed}, RewardsSequence},
		{"setup over hourglass", []vision.Ref{AutoOff, Hourglass}, BattleSetup},
		{"result over hourglass", []vision.Ref{ResultProceed, Hourglass}, ResultScreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(newMockFinder(tt.visible...))
			assert.Equal(t, tt.want, c.Classify(blank))
		})
	}
}

func TestMissingTemplateCountsAsAbsent(t *testing.T) {
	f := newMockFinder(ExpansionsButton)
	f.Missing[PopupOK] = true

	c := newTestClassifier(f)
	assert.Equal(t, BattleSelection, c.Classify(blank))
	assert.Equal(t, BattleSelection, c.Classify(blank))
}

func TestEachTemplateCheckedOncePerClassification(t *testing.T) {
	f := newMockFinder(AutoOff)
	c := newTestClassifier(f)

	assert.Equal(t, BattleSetup, c.Classify(blank))
	for ref, n := range f.Calls {
		assert.Equal(t, 1, n, "%s probed %d times", ref, n)
	}
	assert.Equal(t, 1, f.Calls[ExpansionsButton])
}

func TestShortCircuitStopsAtFirstMatch(t *testing.T) {
	f := newMockFinder(PopupOK)
	c := newTestClassifier(f)

	assert.Equal(t, OptionalPopup, c.Classify(blank))
	assert.Equal(t, 1, len(f.Calls))
}

func TestTemplatePaths(t *testing.T) {
	assert.Equal(t, "expansion_selection/series_a/GA.png", EntryRef(expansion.Key{Series: expansion.SeriesA, Name: "GA"}).String())
	assert.Equal(t, "expansion_selection/series/b.png", SeriesButton(expansion.SeriesB).String())
	assert.Len(t, StaticRefs(), 16)
}
