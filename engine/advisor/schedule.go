package advisor

import "strings"

// BlockKind classifies one line of a maintenance schedule.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockBold      BlockKind = "bold"
	BlockBullet    BlockKind = "bullet"
	BlockParagraph BlockKind = "paragraph"
)

// Block is a display-ready schedule line with its markup stripped.
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

// ParseSchedule splits text into trimmed, non-empty lines and classifies
// each: "### " heading, "**...**" bold, "* " bullet, else paragraph.
func ParseSchedule(text string) []Block {
	var blocks []Block
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "### "):
			blocks = append(blocks, Block{BlockHeading, strings.Replace(line, "### ", "", 1)})
		case strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**"):
			blocks = append(blocks, Block{BlockBold, strings.ReplaceAll(line, "**", "")})
		case strings.HasPrefix(line, "* "):
			blocks = append(blocks, Block{BlockBullet, line[2:]})
		default:
			blocks = append(blocks, Block{BlockParagraph, line})
		}
	}
	return blocks
}
