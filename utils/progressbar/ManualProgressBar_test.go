package progressbar

import (
	"bytes"
	"strings"
	"testing"
)

func TestManualProgressBar(t *testing.T) {
	var out bytes.Buffer
	p := NewLabelledProgressBar(&out, "train", 10, 4)

	for i := 0; i < 6; i++ {
		p.Increment()
	}
	if p.Progress() != 1 {
		t.Errorf("progress: want(1) have(%v)", p.Progress())
	}

	bar := p.String()
	if !strings.HasPrefix(bar, "train |") {
		t.Errorf("bar does not start with label: %q", bar)
	}
	if !strings.Contains(bar, "100.00%") {
		t.Errorf("bar does not report completion: %q", bar)
	}
	if n := strings.Count(bar, "█"); n != 10 {
		t.Errorf("filled cells: want(10) have(%d)", n)
	}

	p.Close()
	if !strings.HasSuffix(out.String(), "\n") {
		t.Error("close did not end the line")
	}
}
