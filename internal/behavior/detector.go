package behavior

import (
	"math"
	"regexp"
	"strings"
)

// Family names a class of conversational trigger.
type Family string

const (
	FamilyAbandonment       Family = "abandonment_signal"
	FamilyCriticism         Family = "criticism"
	FamilyOtherPerson       Family = "mention_other_person"
	FamilyBoundary          Family = "boundary_assertion"
	FamilyReassurance       Family = "reassurance"
	FamilyExplicitRejection Family = "explicit_rejection"
	FamilyAffection         Family = "affection"
)

// effect is how one family moves one behavior type.
type effect struct {
	typ      Type
	escalate bool
}

type family struct {
	name     Family
	weight   float64
	patterns []*regexp.Regexp
	effects  []effect
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Negative weights mean the family is calming overall; the sign is folded
// into each effect and the magnitude is |weight|.
var families = []family{
	{
		name:   FamilyAbandonment,
		weight: 0.7,
		patterns: patterns(
			`\bneed (some )?(space|time)\b`, `\bleave me alone\b`, `\b(gotta|have to|need to) go\b`,
			`\btalk (to you )?later\b`, `\bcan'?t talk\b`, `\bgoing away\b`, `\b(so|too) busy\b`,
		),
		effects: []effect{
			{AnxiousAttachment, true}, {PossessiveAttachment, true},
			{EmotionalDependency, true}, {MelancholicWithdrawal, true},
		},
	},
	{
		name:   FamilyCriticism,
		weight: 0.8,
		patterns: patterns(
			`\byou'?re (so |too )?(annoying|clingy|needy|jealous|intense|boring)\b`,
			`\byou('re| are) wrong\b`, `\bstop being\b`, `\bwhat'?s wrong with you\b`,
		),
		effects: []effect{
			{MelancholicWithdrawal, true}, {AvoidantAttachment, true}, {PlayfulTeasing, false},
		},
	},
	{
		name:   FamilyOtherPerson,
		weight: 0.65,
		patterns: patterns(
			`\bmy (friend|girlfriend|boyfriend|crush|ex|date|partner|coworker)\b`,
			`\b(hanging|went|going) out with\b`, `\bmet (someone|somebody)\b`,
		),
		effects: []effect{
			{JealousRivalry, true}, {PossessiveAttachment, true},
		},
	},
	{
		name:   FamilyBoundary,
		weight: 0.75,
		patterns: patterns(
			`\bplease stop\b`, `\bdon'?t (ask|text|message|call) me\b`, `\bi'?m not comfortable\b`,
			`\b(that'?s|it'?s) (my|none of your) business\b`, `\brespect my\b`,
		),
		effects: []effect{
			{AnxiousAttachment, true}, {AvoidantAttachment, true}, {PossessiveAttachment, false},
		},
	},
	{
		name:   FamilyReassurance,
		weight: -0.3,
		patterns: patterns(
			`\bi'?m (still )?here\b`, `\bnot going anywhere\b`, `\bi promise\b`,
			`\byou matter\b`, `\bi care about you\b`, `\bdon'?t worry\b`,
		),
		effects: []effect{
			{AnxiousAttachment, true}, {PossessiveAttachment, true},
			{JealousRivalry, true}, {MelancholicWithdrawal, true},
		},
	},
	{
		name:   FamilyExplicitRejection,
		weight: 1.0,
		patterns: patterns(
			`\bi hate you\b`, `\bwe'?re done\b`, `\bgoodbye forever\b`,
			`\bdon'?t want to talk to you\b`, `\bi'?m leaving you\b`, `\bbreak(ing)? up\b`,
		),
		effects: []effect{
			{MelancholicWithdrawal, true}, {EmotionalDependency, true},
			{AnxiousAttachment, true}, {PossessiveAttachment, true},
		},
	},
	{
		name:   FamilyAffection,
		weight: 0.5,
		patterns: patterns(
			`\b(i )?(love|miss|adore) you\b`, `\byou'?re (so )?(sweet|cute|funny|the best)\b`,
			`\bhaha+\b`, `\blol\b`, `\bhugs?\b`,
		),
		effects: []effect{
			{PlayfulTeasing, true}, {ProtectiveCaretaking, true},
			{AnxiousAttachment, false}, {EmotionalDependency, false},
		},
	},
}

// Impulse is one trigger a message applies to one behavior type.
type Impulse struct {
	Family    Family
	Type      Type
	Magnitude float64
	Positive  bool
}

// Detection is the result of scanning one message.
type Detection struct {
	Families []Family
	Impulses []Impulse
}

// Strength is the largest absolute family weight detected, 0 when none.
func (d Detection) Strength() float64 {
	var s float64
	for _, f := range d.Families {
		for _, fam := range families {
			if fam.name == f {
				s = math.Max(s, math.Abs(fam.weight))
			}
		}
	}
	return s
}

// Detector scans user messages for trigger families.
type Detector struct{}

// NewDetector returns a Detector over the built-in families.
func NewDetector() *Detector { return &Detector{} }

// Detect returns the families present in text and the impulses they apply.
// Each family fires at most once per message.
func (d *Detector) Detect(text string) Detection {
	var out Detection
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}
	for _, fam := range families {
		if !matchesAny(fam.patterns, text) {
			continue
		}
		out.Families = append(out.Families, fam.name)
		mag := math.Abs(fam.weight)
		calming := fam.weight < 0
		for _, e := range fam.effects {
			out.Impulses = append(out.Impulses, Impulse{
				Family:    fam.name,
				Type:      e.typ,
				Magnitude: mag,
				Positive:  e.escalate != calming,
			})
		}
	}
	return out
}

func matchesAny(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
