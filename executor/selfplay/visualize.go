// visualize.go - Console visualization for debugging self-play episodes.
//
// PrintBoard outputs the ASCII board and the non-empty network input
// channels for debugging and development.
package selfplay

import (
	"fmt"
	"log"
	"strings"

	"github.com/brensch/atlantis/executor/convert"
	"github.com/brensch/atlantis/game"
	"github.com/brensch/atlantis/render"
)

var channelNames = [convert.Channels]string{
	convert.ChanEnemyRight: "enemy_right",
	convert.ChanEnemyLeft:  "enemy_left",
	convert.ChanEnemySpeed: "enemy_speed",
	convert.ChanArmed:      "armed",
	convert.ChanBullets:    "bullets",
	convert.ChanCannons:    "cannons",
	convert.ChanCooldown:   "cooldown",
	convert.ChanFireLatch:  "fire_latch",
	convert.ChanQuota:      "quota",
	convert.ChanPlasma:     "plasma",
}

func PrintBoard(cfg *game.Config, s *game.State) {
	var sb strings.Builder
	sb.WriteString("\n=== TRACE ===\n")
	sb.WriteString(render.ASCII(cfg, s))
	printEncodedLayers(&sb, cfg, s)
	log.Print(sb.String())
}

// printEncodedLayers writes each channel that has any signal. Uniform planes
// are summarised by their value.
func printEncodedLayers(sb *strings.Builder, cfg *game.Config, s *game.State) {
	dataPtr := convert.StateToFloat32(cfg, s)
	data := *dataPtr
	defer convert.PutFloatBuffer(dataPtr)

	plane := convert.Height * convert.Width
	sb.WriteString("\n--- TRACE Encoded input layers (C,H,W) ---\n")
	for c := 0; c < convert.Channels; c++ {
		layer := data[c*plane : (c+1)*plane]
		if v, ok := uniform(layer); ok {
			if v != 0 {
				fmt.Fprintf(sb, "Layer %d (%s): all %.2f\n", c, channelNames[c], v)
			}
			continue
		}
		fmt.Fprintf(sb, "Layer %d (%s):\n", c, channelNames[c])
		for y := 0; y < convert.Height; y++ {
			for x := 0; x < convert.Width; x++ {
				v := layer[y*convert.Width+x]
				if v == 0 {
					sb.WriteByte('.')
				} else if v >= 1 {
					sb.WriteByte('#')
				} else {
					sb.WriteByte(byte('0' + int(v*10)))
				}
			}
			sb.WriteByte('\n')
		}
	}
}

func uniform(layer []float32) (float32, bool) {
	for _, v := range layer[1:] {
		if v != layer[0] {
			return 0, false
		}
	}
	return layer[0], true
}
