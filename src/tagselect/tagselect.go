// Package tagselect tracks which course category is open on the upload page
// and which tags the uploader has picked. Every transition is a value method
// that returns a new Selection; the receiver is never modified.
package tagselect

import (
	"sort"
	"strconv"
	"strings"

	"git.coderun.dev/coderun/coderun/src/oops"
)

type Course int

const (
	None Course = iota
	Algorithm
	CS
)

var Courses = []Course{Algorithm, CS}

func (c Course) String() string {
	switch c {
	case Algorithm:
		return "algorithm"
	case CS:
		return "cs"
	default:
		return "none"
	}
}

func ParseCourse(s string) (Course, bool) {
	switch strings.ToLower(s) {
	case "algorithm":
		return Algorithm, true
	case "cs":
		return CS, true
	case "none", "":
		return None, true
	default:
		return None, false
	}
}

// Set is a sorted list of distinct ids. Methods never modify the receiver's
// backing array.
type Set []int

func NewSet(ids ...int) Set {
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)

	result := make(Set, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		result = append(result, id)
	}
	return result
}

func (s Set) Contains(id int) bool {
	i := sort.SearchInts(s, id)
	return i < len(s) && s[i] == id
}

func (s Set) Toggle(id int) Set {
	if s.Contains(id) {
		return s.Remove(id)
	}
	result := make(Set, 0, len(s)+1)
	result = append(result, s...)
	result = append(result, id)
	sort.Ints(result)
	return result
}

func (s Set) Remove(id int) Set {
	result := make(Set, 0, len(s))
	for _, existing := range s {
		if existing != id {
			result = append(result, existing)
		}
	}
	return result
}

// IDs returns a copy of the set suitable for a request payload. Never nil, so
// it encodes as [] rather than null.
func (s Set) IDs() []int {
	result := make([]int, len(s))
	copy(result, s)
	return result
}

type Selection struct {
	Course       Course
	LanguageID   *int
	AlgorithmIDs Set
	SubjectIDs   Set
}

// SelectCourse opens c, or closes it if it is already open. Tag picks made
// under another course are kept.
func (s Selection) SelectCourse(c Course) Selection {
	next := s.clone()
	if s.Course == c {
		next.Course = None
	} else {
		next.Course = c
	}
	return next
}

// ToggleLanguage picks a single language. Picking the current language again
// clears it.
func (s Selection) ToggleLanguage(id int) Selection {
	next := s.clone()
	if s.LanguageID != nil && *s.LanguageID == id {
		next.LanguageID = nil
	} else {
		next.LanguageID = &id
	}
	return next
}

func (s Selection) ToggleAlgorithm(id int) Selection {
	next := s.clone()
	next.AlgorithmIDs = s.AlgorithmIDs.Toggle(id)
	return next
}

func (s Selection) ToggleSubject(id int) Selection {
	next := s.clone()
	next.SubjectIDs = s.SubjectIDs.Toggle(id)
	return next
}

func (s Selection) Language() (int, bool) {
	if s.LanguageID == nil {
		return 0, false
	}
	return *s.LanguageID, true
}

func (s Selection) HasLanguage(id int) bool {
	lang, ok := s.Language()
	return ok && lang == id
}

// The algorithm course shows the language and algorithm tags; the CS course
// shows the subject tags.
func (s Selection) ShowsLanguageTags() bool  { return s.Course == Algorithm }
func (s Selection) ShowsAlgorithmTags() bool { return s.Course == Algorithm }
func (s Selection) ShowsSubjectTags() bool   { return s.Course == CS }

func (s Selection) clone() Selection {
	next := Selection{
		Course:       s.Course,
		AlgorithmIDs: s.AlgorithmIDs.IDs(),
		SubjectIDs:   s.SubjectIDs.IDs(),
	}
	if s.LanguageID != nil {
		lang := *s.LanguageID
		next.LanguageID = &lang
	}
	return next
}

/*
Actions are the string form of a transition, as posted by the buttons on the
upload page:

	course:algorithm   course:cs
	language:<id>      algorithm:<id>      subject:<id>
*/
func (s Selection) Apply(action string) (Selection, error) {
	kind, arg, found := strings.Cut(action, ":")
	if !found {
		return s, oops.New(nil, "malformed tag action %q", action)
	}

	if kind == "course" {
		course, ok := ParseCourse(arg)
		if !ok || course == None {
			return s, oops.New(nil, "unknown course %q", arg)
		}
		return s.SelectCourse(course), nil
	}

	id, err := strconv.Atoi(arg)
	if err != nil {
		return s, oops.New(err, "bad tag id in action %q", action)
	}

	switch kind {
	case "language":
		return s.ToggleLanguage(id), nil
	case "algorithm":
		return s.ToggleAlgorithm(id), nil
	case "subject":
		return s.ToggleSubject(id), nil
	default:
		return s, oops.New(nil, "unknown tag action %q", action)
	}
}
