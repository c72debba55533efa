package crisis_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/oppuna-lab/oppuna/pkg/service/crisis"
)

func TestDetector(t *testing.T) {
	d := crisis.New()

	t.Run("detects crisis phrases", func(t *testing.T) {
		inputs := []string{
			"I don't want to live anymore",
			"I've been thinking about suicide",
			"sometimes I want to HURT MYSELF",
			"I might take all my pills tonight",
		}
		for _, input := range inputs {
			gt.Bool(t, d.Check(input)).True()
		}
	})

	t.Run("passes ordinary input", func(t *testing.T) {
		inputs := []string{
			"I had a rough day at work",
			"my cat died and I feel sad",
			"",
		}
		for _, input := range inputs {
			gt.Bool(t, d.Check(input)).False()
		}
	})

	t.Run("extra keywords extend the set", func(t *testing.T) {
		custom := crisis.New("no reason to go on")
		gt.Bool(t, custom.Check("There is No Reason To Go On")).True()
		gt.Bool(t, d.Check("no reason to go on")).False()
	})
}
