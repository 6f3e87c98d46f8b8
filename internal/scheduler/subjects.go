package scheduler

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Resource is a shared specialty room.
type Resource uint8

const (
	ResourceNone Resource = iota
	ResourceITRoom
	ResourceGym
)

// Capacity is the number of classes the room can host in one period.
func (r Resource) Capacity() int {
	switch r {
	case ResourceITRoom:
		return 1
	case ResourceGym:
		return 2
	default:
		return 0
	}
}

func (r Resource) String() string {
	switch r {
	case ResourceITRoom:
		return "it-room"
	case ResourceGym:
		return "gym"
	default:
		return "none"
	}
}

var (
	itRoomSubjects = []string{"bilişim", "bilgisayar"}
	gymSubjects    = []string{"beden eğitimi"}

	protectedSubjects = []string{
		"görsel sanatlar",
		"beden eğitimi",
		"bilişim",
		"müzik",
		"seçmeli",
		"kulüp",
	}
)

// foldName lowercases with Turkish rules so "BİLİŞİM" and "Bilişim" compare equal.
// A Caser is stateful, so one is built per call.
func foldName(name string) string {
	return cases.Lower(language.Turkish).String(norm.NFC.String(strings.TrimSpace(name)))
}

func containsAny(folded string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(folded, needle) {
			return true
		}
	}
	return false
}

// ResourceFor returns the room a subject needs.
func ResourceFor(subjectName string) Resource {
	folded := foldName(subjectName)
	switch {
	case containsAny(folded, itRoomSubjects):
		return ResourceITRoom
	case containsAny(folded, gymSubjects):
		return ResourceGym
	default:
		return ResourceNone
	}
}

// IsProtectedSubject reports subjects the flexible pass never displaces.
func IsProtectedSubject(subjectName string) bool {
	return containsAny(foldName(subjectName), protectedSubjects)
}

// IsClubSubject reports whether a subject name denotes club hours.
func IsClubSubject(subjectName string) bool {
	return strings.Contains(foldName(subjectName), "kulüp")
}
