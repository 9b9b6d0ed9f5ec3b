package domain

import "strings"

// BookingType is the canonical booking category.
type BookingType string

const (
	BookingTypeStandard BookingType = "STANDARD"
	BookingTypeVIP      BookingType = "VIP"
	BookingTypeComp     BookingType = "COMP"
)

// Result is the canonical intro result.
type Result string

const (
	ResultPurchased            Result = "PURCHASED"
	ResultDidntBuy             Result = "DIDNT_BUY"
	ResultNoShow               Result = "NO_SHOW"
	ResultNotInterested        Result = "NOT_INTERESTED"
	ResultFollowUpNeeded       Result = "FOLLOW_UP_NEEDED"
	ResultSecondIntroScheduled Result = "SECOND_INTRO_SCHEDULED"
	// ResultUnresolved means no dictionary entry matched. It is never a real outcome.
	ResultUnresolved Result = "UNRESOLVED"
)

// CanonicalizeBookingType maps the booking_type_canon column to a BookingType.
// Only an exact (trimmed, case-insensitive) VIP or COMP produces those types.
func CanonicalizeBookingType(raw string) BookingType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(BookingTypeVIP):
		return BookingTypeVIP
	case string(BookingTypeComp):
		return BookingTypeComp
	default:
		return BookingTypeStandard
	}
}

// membershipTiers are the studio's membership names. Staff historically logged the
// tier itself, or "sold - <tier>", as the intro result.
var membershipTiers = []string{
	"premier",
	"premier + otbeat",
	"premier w/ otbeat",
	"elite",
	"elite + otbeat",
	"elite w/ otbeat",
	"basic",
	"basic + otbeat",
	"basic w/ otbeat",
	"unlimited",
	"10 class pack",
	"class pack",
}

var resultDictionary = buildResultDictionary()

func buildResultDictionary() map[string]Result {
	dict := map[string]Result{
		"purchased": ResultPurchased,
		"sold":      ResultPurchased,
		"bought":    ResultPurchased,

		"didn't buy":      ResultDidntBuy,
		"didnt buy":       ResultDidntBuy,
		"didn\u2019t buy": ResultDidntBuy,
		"did not buy":     ResultDidntBuy,
		"didnt_buy":       ResultDidntBuy,
		"no sale":         ResultDidntBuy,
		"no-sale":         ResultDidntBuy,

		"no-show": ResultNoShow,
		"no show": ResultNoShow,
		"noshow":  ResultNoShow,
		"no_show": ResultNoShow,

		"not interested": ResultNotInterested,
		"not_interested": ResultNotInterested,

		"follow-up needed": ResultFollowUpNeeded,
		"follow up needed": ResultFollowUpNeeded,
		"follow-up":        ResultFollowUpNeeded,
		"follow up":        ResultFollowUpNeeded,
		"needs follow-up":  ResultFollowUpNeeded,
		"follow_up_needed": ResultFollowUpNeeded,

		"2nd intro scheduled":    ResultSecondIntroScheduled,
		"second intro scheduled": ResultSecondIntroScheduled,
		"booked 2nd intro":       ResultSecondIntroScheduled,
		"2nd intro":              ResultSecondIntroScheduled,
		"second_intro_scheduled": ResultSecondIntroScheduled,
	}

	for _, tier := range membershipTiers {
		dict[tier] = ResultPurchased
		dict["sold - "+tier] = ResultPurchased
		dict["sold – "+tier] = ResultPurchased
		dict["sold-"+tier] = ResultPurchased
	}
	return dict
}

// CanonicalizeResult maps a free-text result to a Result via the fixed dictionary.
// Anything not in the dictionary is ResultUnresolved.
func CanonicalizeResult(raw string) Result {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ResultUnresolved
	}
	if r, ok := resultDictionary[key]; ok {
		return r
	}
	return ResultUnresolved
}

// IsSale reports whether r counts as a membership sale.
func (r Result) IsSale() bool {
	return r == ResultPurchased
}

// IsTerminal reports whether no further action is expected after r.
func (r Result) IsTerminal() bool {
	return r == ResultPurchased || r == ResultNotInterested
}

// IsResolved reports whether r is a recognised outcome rather than the sentinel.
func (r Result) IsResolved() bool {
	return r != ResultUnresolved && r != ""
}
