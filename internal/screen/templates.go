package screen

import (
	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/vision"
)

// Reference images, grouped by the screen they belong to.
var (
	ExpansionsButton = vision.Ref{Scope: "battle_selection", File: "expansions.png"}
	Hourglass        = vision.Ref{Scope: "battle_selection", File: "hourglass.png"}

	AutoOff     = vision.Ref{Scope: "battle_setup", File: "auto.png"}
	BattleStart = vision.Ref{Scope: "battle_setup", File: "battle.png"}

	Opponent        = vision.Ref{Scope: "battle_in_progress", File: "opponent.png"}
	PutBasic        = vision.Ref{Scope: "battle_in_progress", File: "put_basic_pokemon.png"}
	AutoOffInBattle = vision.Ref{Scope: "battle_in_progress", File: "auto_off.png"}

	ResultProceed  = vision.Ref{Scope: "result", File: "tap_to_proceed.png"}
	RewardsProceed = vision.Ref{Scope: "rewards", File: "tap_to_proceed.png"}
	SummaryNext    = vision.Ref{Scope: "summary", File: "next.png"}
	PopupOK        = vision.Ref{Scope: "popup_new_battle", File: "ok.png"}
	Defeat         = vision.Ref{Scope: "defeat", File: "defeat.png"}
	DefeatBack     = vision.Ref{Scope: "defeat_popup", File: "back.png"}

	CatalogClose = vision.Ref{Scope: "expansion_selection/close_button", File: "close_x.png"}
)

// SeriesButton returns the tab that switches the catalog view to series.
func SeriesButton(series expansion.Series) vision.Ref {
	return vision.Ref{Scope: "expansion_selection/series", File: series.Lower() + ".png"}
}

// EntryRef returns the catalog icon of one entry.
func EntryRef(key expansion.Key) vision.Ref {
	return vision.Ref{Scope: "expansion_selection/series_" + key.Series.Lower(), File: key.Name + ".png"}
}

// StaticRefs lists every fixed template the classifier and controller use.
// Catalog entry icons are not included; see EntryRef.
func StaticRefs() []vision.Ref {
	return []vision.Ref{
		ExpansionsButton, Hourglass,
		AutoOff, BattleStart,
		Opponent, PutBasic, AutoOffInBattle,
		ResultProceed, RewardsProceed, SummaryNext, PopupOK, Defeat, DefeatBack,
		CatalogClose,
		SeriesButton(expansion.SeriesA), SeriesButton(expansion.SeriesB),
	}
}
