package pipeline

import "github.com/Brownie44l1/catdog-api/internal/model"

var facts = map[model.Label][]string{
	model.LabelCat: {
		"Cats have excellent night vision and can rotate their ears 180 degrees.",
		"A group of cats is called a clowder.",
		"Cats spend roughly two thirds of their lives asleep.",
		"A cat's nose print is as unique as a human fingerprint.",
	},
	model.LabelDog: {
		"Dogs have a sense of smell tens of thousands of times better than humans.",
		"A dog's nose print is as unique as a human fingerprint.",
		"Dogs can learn more than a hundred words and gestures.",
		"Dogs sweat through the pads of their paws.",
	},
}

// FactFor picks a fact about the predicted animal. n rotates the choice.
func FactFor(label model.Label, n int) string {
	list := facts[label]
	if len(list) == 0 {
		return ""
	}
	if n < 0 {
		n = -n
	}
	return list[n%len(list)]
}
