package room

import (
	"fmt"
	"math/rand"
)

// CodeGenerator returns a candidate room code. Codes need not be unique;
// the registry retries on collision.
type CodeGenerator func() string

var adjectives = []string{
	"BRAVE", "CALM", "CLEVER", "COSMIC", "CRISPY", "DIZZY", "EAGER", "FANCY",
	"FUZZY", "GIANT", "GOLDEN", "HAPPY", "JOLLY", "LUCKY", "MIGHTY", "NIMBLE",
	"PLUCKY", "QUICK", "ROYAL", "SHINY", "SNEAKY", "SPICY", "SUNNY", "SWIFT",
	"TURBO", "WACKY", "WILD", "ZESTY",
}

// RandomCode 生成 ADJECTIVE-NNNN 格式的房间码
func RandomCode() string {
	adj := adjectives[rand.Intn(len(adjectives))]
	return fmt.Sprintf("%s-%04d", adj, 1000+rand.Intn(9000))
}
