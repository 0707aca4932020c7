package chunking

import (
	"testing"
)

func TestParseSplitsAtKnownHeadings(t *testing.T) {
	text := "INTRODUCTION\nfront matter that precedes chapters\n1\nKasa\nCough arises from vitiated vata.\n2\nAmavata\nJoint pain with ama involvement."

	chapters := NewMarkerParser().Parse(text)
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d: %+v", len(chapters), chapters)
	}
	if chapters[0].Title != "Kasa" || chapters[0].Content != "Cough arises from vitiated vata." {
		t.Fatalf("first chapter = %+v", chapters[0])
	}
	if chapters[1].Title != "Amavata" || chapters[1].Content != "Joint pain with ama involvement." {
		t.Fatalf("second chapter = %+v", chapters[1])
	}
}

func TestParseHeadingWithoutNumberLine(t *testing.T) {
	text := "Gridhrasi\nRadiating pain along the leg."

	chapters := NewMarkerParser().Parse(text)
	if len(chapters) != 1 || chapters[0].Title != "Gridhrasi" {
		t.Fatalf("chapters = %+v", chapters)
	}
}

func TestParseIsCaseInsensitiveButKeepsDocumentCasing(t *testing.T) {
	text := "AMAVATA\nThe joints swell and stiffen."

	chapters := NewMarkerParser().Parse(text)
	if len(chapters) != 1 {
		t.Fatalf("chapters = %+v", chapters)
	}
	if chapters[0].Title != "AMAVATA" {
		t.Fatalf("title should keep the document casing, got %q", chapters[0].Title)
	}
}

func TestParseIgnoresMarkerInsideSentence(t *testing.T) {
	text := "Kasa is described in the classics alongside other disorders."

	chapters := NewMarkerParser().Parse(text)
	if len(chapters) != 1 || chapters[0].Title != "General" {
		t.Fatalf("marker inside a sentence must not split, got %+v", chapters)
	}
}

func TestParseFallsBackToGeneralChapter(t *testing.T) {
	chapters := NewMarkerParser().Parse("  some scanned text without any known heading  ")
	if len(chapters) != 1 {
		t.Fatalf("chapters = %+v", chapters)
	}
	if chapters[0].Title != "General" {
		t.Fatalf("title = %q", chapters[0].Title)
	}
	if chapters[0].Content != "some scanned text without any known heading" {
		t.Fatalf("content = %q", chapters[0].Content)
	}
}

func TestParseEmptyText(t *testing.T) {
	if chapters := NewMarkerParser().Parse("   \n  "); len(chapters) != 0 {
		t.Fatalf("expected no chapters, got %+v", chapters)
	}
}

func TestParseSkipsHeadingWithNoBody(t *testing.T) {
	text := "1\nKasa\n2\nAmavata\nJoint pain with ama."

	chapters := NewMarkerParser().Parse(text)
	if len(chapters) != 1 {
		t.Fatalf("expected the empty chapter dropped, got %+v", chapters)
	}
	if chapters[0].Title != "Amavata" {
		t.Fatalf("title = %q", chapters[0].Title)
	}
}
