// Package chunk splits day-marked transcripts into bounded pieces whose
// boundaries land on day markers whenever possible. Cutting at markers keeps
// earlier chunk boundaries stable when new days are appended to a transcript,
// which in turn keeps their cached summaries valid.
package chunk

import "strings"

// dateMarker opens a day section in a transcript. The ten characters after it
// are the YYYY-MM-DD date.
const dateMarker = "📅 "

// closeFactor: a chunk past this fraction of the size limit is closed at the
// next day marker instead of growing to the hard limit.
const closeFactor = 0.7

// Chunk is one transcript piece with the dates its lines cover.
type Chunk struct {
	Text      string
	FirstDate string
	LastDate  string
	DateRange []string
}

// Split breaks a transcript into chunks of at most roughly maxChunkChars.
// Day-marker lines are preferred boundaries; a transcript without markers is
// split purely by size. Appending complete new days to the transcript never
// changes any chunk except the last.
func Split(transcript string, maxChunkChars int) []Chunk {
	lines := strings.Split(transcript, "\n")

	markerAt := make(map[int]string)
	hasMarkers := false
	for i, line := range lines {
		if strings.HasPrefix(line, dateMarker) {
			markerAt[i] = markerDate(line)
			hasMarkers = true
		}
	}

	if !hasMarkers {
		return splitBySize(lines, maxChunkChars)
	}

	softLimit := int(float64(maxChunkChars) * closeFactor)

	var chunks []Chunk
	var cur []string
	curSize := 0
	var curDates []string

	for _, line := range lines {
		lineSize := len(line) + 1
		isMarker := strings.HasPrefix(line, dateMarker)
		lineDate := ""
		if isMarker {
			lineDate = markerDate(line)
		}

		// A new day starting in an already-large chunk closes it.
		if isMarker && curSize > softLimit && len(cur) > 0 {
			chunks = append(chunks, makeChunk(cur, curDates))
			cur = []string{line}
			curSize = lineSize
			curDates = []string{lineDate}
			continue
		}

		if curSize+lineSize > maxChunkChars && len(cur) > 0 {
			if isMarker {
				chunks = append(chunks, makeChunk(cur, curDates))
				cur = []string{line}
				curSize = lineSize
				curDates = []string{lineDate}
				continue
			}

			// Hard overflow mid-day: back off to the last day marker in the
			// buffer so the boundary stays on a marker line.
			lastMarker := -1
			for j := len(cur) - 1; j >= 0; j-- {
				if strings.HasPrefix(cur[j], dateMarker) {
					lastMarker = j
					break
				}
			}

			if lastMarker >= 0 {
				saved := cur[:lastMarker+1]
				chunks = append(chunks, makeChunk(saved, datesIn(saved)))

				rest := append(append([]string(nil), cur[lastMarker+1:]...), line)
				cur = rest
				curSize = 0
				for _, l := range cur {
					curSize += len(l) + 1
				}
				curDates = datesIn(cur)
			} else {
				cur = append(cur, line)
				chunks = append(chunks, makeChunk(cur, curDates))
				cur = nil
				curSize = 0
				curDates = nil
			}
			continue
		}

		cur = append(cur, line)
		curSize += lineSize
		if isMarker && !contains(curDates, lineDate) {
			curDates = append(curDates, lineDate)
		}
	}

	if len(cur) > 0 {
		chunks = append(chunks, makeChunk(cur, curDates))
	}
	return chunks
}

func splitBySize(lines []string, maxChunkChars int) []Chunk {
	var chunks []Chunk
	var cur []string
	curSize := 0

	for _, line := range lines {
		lineSize := len(line) + 1
		if curSize+lineSize > maxChunkChars && len(cur) > 0 {
			chunks = append(chunks, Chunk{Text: strings.Join(cur, "\n")})
			cur = []string{line}
			curSize = lineSize
		} else {
			cur = append(cur, line)
			curSize += lineSize
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, Chunk{Text: strings.Join(cur, "\n")})
	}
	return chunks
}

func makeChunk(lines, dates []string) Chunk {
	c := Chunk{
		Text:      strings.Join(lines, "\n"),
		DateRange: append([]string(nil), dates...),
	}
	if len(dates) > 0 {
		c.FirstDate = dates[0]
		c.LastDate = dates[len(dates)-1]
	}
	return c
}

// markerDate pulls the YYYY-MM-DD date off a marker line.
func markerDate(line string) string {
	d := strings.TrimSpace(strings.TrimPrefix(line, dateMarker))
	if len(d) > 10 {
		d = d[:10]
	}
	return d
}

// datesIn lists the distinct marker dates in order of first appearance.
func datesIn(lines []string) []string {
	var dates []string
	for _, line := range lines {
		if strings.HasPrefix(line, dateMarker) {
			d := markerDate(line)
			if !contains(dates, d) {
				dates = append(dates, d)
			}
		}
	}
	return dates
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
