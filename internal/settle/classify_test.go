package settle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyExplicitTargetWinsOverPattern(t *testing.T) {
	c := NewClassifier(testSnapshot())

	// The label also matches heaz's pattern; the target field takes precedence.
	got := c.Classify(CostLine{ID: "c1", Target: "BKID", Label: "SA_heaz_campaign"})
	assert.Equal(t, Direct("bkid"), got)

	// Target matching by display name, case-insensitively.
	got = c.Classify(CostLine{ID: "c2", Target: "plus x", Label: "whatever"})
	assert.Equal(t, Direct("plusx"), got)
}

func TestClassifyPatternPriorityOrder(t *testing.T) {
	c := NewClassifier(testSnapshot())

	got := c.Classify(CostLine{ID: "c1", Label: "DA_비케이아이디_리타게팅"})
	assert.Equal(t, Direct("bkid"), got)

	got = c.Classify(CostLine{ID: "c2", Label: "SA_헤즈_브랜드"})
	assert.Equal(t, Direct("heaz"), got)
}

func TestClassifyUnknownTargetFallsThroughToPatterns(t *testing.T) {
	c := NewClassifier(testSnapshot())

	got := c.Classify(CostLine{ID: "c1", Target: "NOBODY", Label: "SA_heaz_브랜드"})
	assert.Equal(t, Direct("heaz"), got)
}

func TestClassifyDefaultsToIndirect(t *testing.T) {
	c := NewClassifier(testSnapshot())

	// Unclassifiable is ordinary shared spend, not an excluded or error case.
	got := c.Classify(CostLine{ID: "c1", Label: "SA_sharex_generic"})
	assert.Equal(t, Indirect(), got)

	got = c.Classify(CostLine{ID: "c2"})
	assert.Equal(t, Indirect(), got)
}
