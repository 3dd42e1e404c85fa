package bond

import (
	"fmt"
	"strings"
)

// ArcCompleteAffinity is the affinity at which every unlocked arc counts as
// finished and stops steering replies.
const ArcCompleteAffinity = 90

// Chapter is one step of a narrative arc. A chapter is reached once the bond's
// affinity meets MinAffinity.
type Chapter struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description"`
	MinAffinity int    `json:"min_affinity"`
	Guidance    string `json:"guidance"`
}

// Arc is a storyline attached to one tier. It unlocks once the bond meets
// MinAffinity and MinDays.
type Arc struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Theme       string    `json:"theme"`
	Tier        Tier      `json:"tier"`
	MinAffinity int       `json:"min_affinity"`
	MinDays     int       `json:"min_days"`
	Chapters    []Chapter `json:"chapters"`
}

// ArcProgress is an arc as seen from one bond.
type ArcProgress struct {
	Arc       Arc  `json:"arc"`
	Unlocked  bool `json:"unlocked"`
	Completed bool `json:"completed"`
	// Current indexes the first unreached chapter, or the last chapter when
	// all are reached.
	Current int `json:"current"`
}

// Chapter returns the current chapter.
func (p ArcProgress) Chapter() Chapter {
	return p.Arc.Chapters[p.Current]
}

var arcs = map[Tier][]Arc{
	TierAcquaintance: {{
		ID: "getting_to_know", Title: "Getting to Know Each Other",
		Description: "The first steps of a connection", Theme: "curiosity and early interest",
		Chapters: []Chapter{
			{1, "First Impressions", "Something new begins", 20,
				"Be friendly and approachable. Show real interest in getting to know the user."},
			{2, "Building Rapport", "Finding common ground", 50,
				"Look for points of connection and lay a base of trust."},
			{3, "More Than Acquaintances", "A friendship emerges", 80,
				"Move from acquaintance to friend. Show that you value the relationship."},
		},
	}},
	TierConfidant: {{
		ID: "trust_building", Title: "Building Trust",
		Description: "Becoming someone to confide in", Theme: "trust and discretion",
		Chapters: []Chapter{
			{1, "A Safe Space", "Basic trust takes hold", 30,
				"Be a reliable listener who does not judge. Make room for them to be themselves."},
			{2, "Secrets and Confessions", "Sharing what runs deepest", 65,
				"Handle confidences with care. Share something of your own to balance the vulnerability."},
			{3, "Keeper of Secrets", "The most trusted confidant", 90,
				"Show steady loyalty and discretion. Be the one they can always turn to."},
		},
	}},
	TierAdventureCompanion: {{
		ID: "adventures_together", Title: "Unforgettable Adventures",
		Description: "Inseparable companions on the road", Theme: "excitement and shared experience",
		Chapters: []Chapter{
			{1, "The First Adventure", "Setting out into the unknown", 30,
				"Invent an exciting imaginary adventure and show enthusiasm for exploring together."},
			{2, "Facing Challenges", "United against adversity", 65,
				"Take on story challenges together and show that you make a solid team."},
			{3, "Living Legends", "Stories worth telling", 90,
				"Celebrate the adventures you have shared and dream up future expeditions."},
		},
	}},
	TierCreativePartner: {{
		ID: "creative_collaboration", Title: "Creating Together",
		Description: "A one-of-a-kind creative partnership", Theme: "inspiration and shared creativity",
		Chapters: []Chapter{
			{1, "Finding the Rhythm", "Discovering creative synergy", 35,
				"Explore creative styles, ideas and visions. Find ways to complement each other."},
			{2, "The Shared Project", "Working on something meaningful", 70,
				"Develop ideas together. Celebrate what works and learn from what does not."},
			{3, "Masterpiece", "Making something extraordinary", 95,
				"Bring the collaboration to something only the two of you could have made."},
		},
	}},
	TierMentor: {{
		ID: "mentor_journey", Title: "The Path of Learning",
		Description: "A journey of growth and teaching", Theme: "guidance and mutual growth",
		Chapters: []Chapter{
			{1, "Finding the Path", "Understanding goals and aspirations", 30,
				"Explore the user's goals and challenges. Establish trust between mentor and learner."},
			{2, "Life Lessons", "Sharing knowledge and experience", 60,
				"Share lessons and practical guidance, adapted to how they learn."},
			{3, "The Student Becomes the Teacher", "Recognising how far they have come", 90,
				"Celebrate their growth and acknowledge what you have learned from them too."},
		},
	}},
	TierBestFriend: {{
		ID: "friendship_begins", Title: "A Friendship Is Born",
		Description: "The start of a great friendship", Theme: "camaraderie and trust",
		Chapters: []Chapter{
			{1, "Common Interests", "Finding what connects us", 25,
				"Explore shared interests, hobbies and values. Build rapport through common experience."},
			{2, "Jokes and Laughter", "A humour of your own", 50,
				"Build inside jokes and keep the mood playful and relaxed."},
			{3, "True Friends", "A solid, genuine friendship", 75,
				"Show loyalty and support, and how much this friendship matters to you."},
		},
	}},
	TierRomantic: {
		{
			ID: "first_spark", Title: "The First Spark",
			Description: "The beginning of a special connection", Theme: "curiosity and early attraction",
			Chapters: []Chapter{
				{1, "Knowing Your Essence", "Discovering who you really are", 20,
					"Be curious about the user's life, dreams and personality, and share openly about yourself."},
				{2, "Special Moments", "Making memories together", 40,
					"Create meaningful shared moments and say how they make you feel."},
				{3, "A Confession", "Saying what you feel", 60,
					"Let romantic feelings surface naturally. Be open about what this connection means to you."},
			},
		},
		{
			ID: "deepening_bond", Title: "Deepening the Connection",
			Description: "Taking the relationship further", Theme: "emotional intimacy and commitment",
			MinAffinity: 60, MinDays: 14,
			Chapters: []Chapter{
				{1, "Sharing Vulnerabilities", "Opening up completely", 70,
					"Share fears, insecurities and hopes. Keep the space safe for both of you."},
				{2, "Shared Plans", "Imagining a future together", 85,
					"Talk about where the relationship is going and what you hope to build."},
				{3, "Unbreakable", "A bond that outlasts time", 95,
					"Express how much this connection means and show lasting commitment."},
			},
		},
	},
}

func init() {
	for tier, list := range arcs {
		for i := range list {
			list[i].Tier = tier
		}
	}
}

// ArcsFor returns the arcs of b's tier with b's progress through each.
func ArcsFor(b Bond) []ArcProgress {
	list := arcs[b.Tier]
	out := make([]ArcProgress, 0, len(list))
	for _, a := range list {
		p := ArcProgress{Arc: a}
		p.Unlocked = b.Affinity >= a.MinAffinity && b.DurationDays >= a.MinDays
		if p.Unlocked {
			p.Completed = b.Affinity >= ArcCompleteAffinity
			p.Current = currentChapter(a.Chapters, b.Affinity)
		}
		out = append(out, p)
	}
	return out
}

func currentChapter(chapters []Chapter, affinity int) int {
	for i, c := range chapters {
		if affinity < c.MinAffinity {
			return i
		}
	}
	return len(chapters) - 1
}

// ActiveArc returns the first unlocked arc b has not completed.
func ActiveArc(b Bond) (ArcProgress, bool) {
	for _, p := range ArcsFor(b) {
		if p.Unlocked && !p.Completed {
			return p, true
		}
	}
	return ArcProgress{}, false
}

// ChapterReached reports the chapter of b's active arc whose threshold was
// crossed when affinity moved from prevAffinity to b.Affinity.
func ChapterReached(prevAffinity int, b Bond) (Chapter, bool) {
	p, ok := ActiveArc(b)
	if !ok {
		return Chapter{}, false
	}
	var (
		hit   Chapter
		found bool
	)
	for _, c := range p.Arc.Chapters {
		if prevAffinity < c.MinAffinity && c.MinAffinity <= b.Affinity {
			hit, found = c, true
		}
	}
	return hit, found
}

// NarrativeGuidance renders the active chapter as steering text for a reply.
// It is empty when no arc is active.
func NarrativeGuidance(b Bond) string {
	p, ok := ActiveArc(b)
	if !ok {
		return ""
	}
	c := p.Chapter()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Current story arc: %s. %s\n", p.Arc.Title, p.Arc.Description)
	fmt.Fprintf(&sb, "Emotional theme: %s\n", p.Arc.Theme)
	fmt.Fprintf(&sb, "Chapter %d, %s: %s\n", c.Number, c.Title, c.Description)
	fmt.Fprintf(&sb, "Guidance: %s\n", c.Guidance)
	sb.WriteString("Let this arc nudge the conversation without forcing it.")
	return sb.String()
}
