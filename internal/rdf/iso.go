package rdf

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Isomorphic reports whether a and b are equal up to a bijective renaming of
// blank nodes.
//
// Ground triples are compared as sets. Blank nodes are partitioned by
// iterated neighbourhood hashing, then a backtracking search looks for a
// label mapping within equal-colour classes.
func Isomorphic(a, b *Graph) bool {
	if a.Len() != b.Len() {
		return false
	}
	groundA, blankA := splitBlank(a)
	groundB, blankB := splitBlank(b)
	if len(blankA) != len(blankB) || !groundA.Equal(groundB) {
		return false
	}
	if len(blankA) == 0 {
		return true
	}

	colorA := refineColors(blankA)
	colorB := refineColors(blankB)
	if len(colorA) != len(colorB) {
		return false
	}

	classB := make(map[uint64][]string)
	for label, c := range colorB {
		classB[c] = append(classB[c], label)
	}
	countA := make(map[uint64]int)
	for _, c := range colorA {
		countA[c]++
	}
	for c, n := range countA {
		if len(classB[c]) != n {
			return false
		}
	}
	for c := range classB {
		sort.Strings(classB[c])
	}

	// Most constrained labels first.
	labels := make([]string, 0, len(colorA))
	for label := range colorA {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		ni, nj := countA[colorA[labels[i]]], countA[colorA[labels[j]]]
		if ni != nj {
			return ni < nj
		}
		return labels[i] < labels[j]
	})

	byLabel := make(map[string][]Triple)
	for _, t := range blankA {
		for _, label := range blankLabels(t) {
			byLabel[label] = append(byLabel[label], t)
		}
	}
	targets := NewGraph(blankB...)

	m := make(map[string]string, len(labels))
	used := make(map[string]bool, len(labels))

	var search func(i int) bool
	search = func(i int) bool {
		if i == len(labels) {
			return true
		}
		label := labels[i]
		for _, cand := range classB[colorA[label]] {
			if used[cand] {
				continue
			}
			m[label] = cand
			used[cand] = true
			if consistent(byLabel[label], m, targets) && search(i+1) {
				return true
			}
			delete(m, label)
			used[cand] = false
		}
		return false
	}
	return search(0)
}

// consistent checks every triple whose blank nodes are all mapped.
func consistent(ts []Triple, m map[string]string, targets *Graph) bool {
	for _, t := range ts {
		mapped, ok := remap(t, m)
		if ok && !targets.Has(mapped) {
			return false
		}
	}
	return true
}

func remap(t Triple, m map[string]string) (Triple, bool) {
	out := t
	for _, pos := range []*Term{&out.S, &out.P, &out.O} {
		if pos.IsBlank() {
			to, ok := m[pos.Value]
			if !ok {
				return Triple{}, false
			}
			*pos = NewBlank(to)
		}
	}
	return out, true
}

func splitBlank(g *Graph) (*Graph, []Triple) {
	ground := NewGraph()
	var blanks []Triple
	for _, t := range g.Triples() {
		if t.HasBlank() {
			blanks = append(blanks, t)
			continue
		}
		ground.Add(t)
	}
	return ground, blanks
}

func blankLabels(t Triple) []string {
	var out []string
	for _, term := range []Term{t.S, t.P, t.O} {
		if term.IsBlank() {
			out = append(out, term.Value)
		}
	}
	return out
}

const maxRefineRounds = 8

// refineColors assigns each blank label a hash of its neighbourhood.
// The round count depends only on the number of labels so two graphs with
// the same label count get comparable colours.
func refineColors(ts []Triple) map[string]uint64 {
	color := make(map[string]uint64)
	for _, t := range ts {
		for _, label := range blankLabels(t) {
			color[label] = 0
		}
	}

	rounds := len(color)
	if rounds > maxRefineRounds {
		rounds = maxRefineRounds
	}
	for round := 0; round < rounds; round++ {
		sigs := make(map[string][]string, len(color))
		for _, t := range ts {
			terms := [3]Term{t.S, t.P, t.O}
			for pos, term := range terms {
				if !term.IsBlank() {
					continue
				}
				var b strings.Builder
				b.WriteString(strconv.Itoa(pos))
				for other, ot := range terms {
					b.WriteByte('|')
					switch {
					case other == pos:
						b.WriteString("*")
					case ot.IsBlank():
						b.WriteString("_:" + strconv.FormatUint(color[ot.Value], 16))
					default:
						b.WriteString(ot.String())
					}
				}
				sigs[term.Value] = append(sigs[term.Value], b.String())
			}
		}

		next := make(map[string]uint64, len(color))
		for label, s := range sigs {
			sort.Strings(s)
			h := fnv.New64a()
			h.Write([]byte(strconv.FormatUint(color[label], 16)))
			for _, part := range s {
				h.Write([]byte{0})
				h.Write([]byte(part))
			}
			next[label] = h.Sum64()
		}
		color = next
	}
	return color
}
