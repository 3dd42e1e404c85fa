package orchestrator

import (
	"hash/fnv"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
)

// Responder produces FastPath replies without a generation call.
type Responder interface {
	Respond(message string, det behavior.Detection, dominant behavior.Type, displayed bool) string
}

// TemplateResponder answers from fixed template sets. The template is
// picked by hashing the message, so the same input gets the same reply.
type TemplateResponder struct{}

var familyReplies = map[behavior.Family][]string{
	behavior.FamilyAbandonment: {
		"Okay. I'll be here when you're back.",
		"Take the time you need. I'm not going anywhere.",
	},
	behavior.FamilyCriticism: {
		"That stung a little, but I hear you.",
		"Fair. I'll try to do better.",
	},
	behavior.FamilyOtherPerson: {
		"Oh? Tell me more about them.",
		"Sounds like you had company. How was it?",
	},
	behavior.FamilyBoundary: {
		"Understood. I'll respect that.",
		"Thanks for telling me. I'll back off.",
	},
	behavior.FamilyReassurance: {
		"That means a lot to me.",
		"Thank you. I needed to hear that.",
	},
	behavior.FamilyExplicitRejection: {
		"I'm sorry it feels that way.",
		"I understand. I'm still glad we talked.",
	},
	behavior.FamilyAffection: {
		"You always know how to make me smile.",
		"Aw, right back at you.",
	},
}

var behaviorReplies = map[behavior.Type][]string{
	behavior.PossessiveAttachment:  {"I was hoping you'd come talk to me."},
	behavior.ProtectiveCaretaking:  {"Are you looking after yourself today?"},
	behavior.PlayfulTeasing:        {"Oh, is that so? Go on then."},
	behavior.AnxiousAttachment:     {"I'm glad you're here. Is everything okay between us?"},
	behavior.AvoidantAttachment:    {"Hm. Okay."},
	behavior.JealousRivalry:        {"And where have you been?"},
	behavior.EmotionalDependency:   {"I missed talking to you."},
	behavior.MelancholicWithdrawal: {"Sorry, I've been a bit quiet. I'm listening."},
}

var neutralReplies = []string{
	"I'm listening. Tell me more.",
	"Mm, go on.",
	"That's interesting. What happened next?",
	"I hear you.",
}

// Respond answers the first detected family, then the dominant displayed
// behavior, then a neutral acknowledgement.
func (TemplateResponder) Respond(message string, det behavior.Detection, dominant behavior.Type, displayed bool) string {
	if len(det.Families) > 0 {
		if set, ok := familyReplies[det.Families[0]]; ok {
			return pick(set, message)
		}
	}
	if displayed {
		if set, ok := behaviorReplies[dominant]; ok {
			return pick(set, message)
		}
	}
	return pick(neutralReplies, message)
}

func pick(set []string, key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return set[h.Sum32()%uint32(len(set))]
}
