package screen

import (
	"image"
	"sync"

	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/logging"
	"github.com/CodexForgeBR/autobattle/internal/vision"
)

// Finder locates one template in a frame. Not finding it is ok == false with
// a nil error.
type Finder interface {
	Find(frame image.Image, ref vision.Ref, threshold float64) (vision.Result, bool, error)
}

// Classifier maps a frame to a State with an ordered cascade of template
// checks. Several screens share visual elements, so the order and the
// "present AND other absent" rules below decide between them.
type Classifier struct {
	Finder   Finder
	Catalogs []expansion.Catalog
	// Threshold applies to every check; <= 0 defers to the Finder default.
	Threshold float64
	Log       logging.Logger

	reported sync.Map
}

// NewClassifier returns a Classifier scanning the given catalogs.
func NewClassifier(finder Finder, catalogs []expansion.Catalog, threshold float64, log logging.Logger) *Classifier {
	return &Classifier{Finder: finder, Catalogs: catalogs, Threshold: threshold, Log: log}
}

// Classify returns the screen shown in frame, or Unknown.
func (c *Classifier) Classify(frame image.Image) State {
	p := &probe{c: c, frame: frame, seen: make(map[vision.Ref]bool)}

	// An overlay popup can sit on top of any other screen.
	if p.present(PopupOK) {
		return OptionalPopup
	}
	if p.present(DefeatBack) {
		return DefeatPopup
	}
	if p.present(SummaryNext) {
		return Summary
	}
	if p.present(Defeat) {
		return DefeatScreen
	}
	// The main selection screen never shows the catalog close button.
	if p.present(CatalogClose) {
		return ExpansionSelection
	}
	// Entry icons can linger behind the selection screen during a
	// transition; the expansions button being visible rules that out.
	if p.anyCatalogEntry() && !p.present(ExpansionsButton) {
		return ExpansionSelection
	}
	if p.present(ExpansionsButton) {
		return BattleSelection
	}
	if p.present(Opponent) || p.present(PutBasic) {
		return BattleInProgress
	}
	if p.present(AutoOff) && !p.present(ExpansionsButton) {
		return BattleSetup
	}
	if p.present(RewardsProceed) {
		return RewardsSequence
	}
	if p.present(ResultProceed) {
		return ResultScreen
	}
	if p.present(Hourglass) {
		return BattleSelection
	}
	return Unknown
}

// Present reports whether ref is visible in frame at the classifier threshold.
// Template errors count as absent and are reported once per template.
func (c *Classifier) Present(frame image.Image, ref vision.Ref) bool {
	_, ok, err := c.Finder.Find(frame, ref, c.Threshold)
	if err != nil {
		c.reportOnce(ref, err)
		return false
	}
	return ok
}

func (c *Classifier) reportOnce(ref vision.Ref, err error) {
	if _, loaded := c.reported.LoadOrStore(ref, struct{}{}); loaded {
		return
	}
	c.Log.Warnf("Template %s unusable, treating as absent: %v", ref, err)
}

// probe memoizes presence checks for a single classification.
type probe struct {
	c     *Classifier
	frame image.Image
	seen  map[vision.Ref]bool
}

func (p *probe) present(ref vision.Ref) bool {
	if v, ok := p.seen[ref]; ok {
		return v
	}
	v := p.c.Present(p.frame, ref)
	p.seen[ref] = v
	return v
}

func (p *probe) anyCatalogEntry() bool {
	for _, cat := range p.c.Catalogs {
		for _, key := range cat.Keys() {
			if p.present(EntryRef(key)) {
				return true
			}
		}
	}
	return false
}
