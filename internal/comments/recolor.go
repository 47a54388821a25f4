package comments

import "danmakuproxy/internal/domain"

// Recolor implements spec/4.5 step 5: an error-diffusion walk that
// converges the fraction of white comments to whiteRatio/100 while
// drawing the remainder from a fixed palette. Palette selection cycles
// the palette in order rather than drawing at random, since the pipeline
// is specified to be deterministic given configuration (spec/1) — a
// random draw would make output non-reproducible for identical input.
func Recolor(list []domain.Danmaku, whiteRatio float64, palette []int, convertTopBottomToScroll bool) []domain.Danmaku {
	if whiteRatio < 0 || whiteRatio > 100 {
		if convertTopBottomToScroll {
			return convertModes(list)
		}
		return list
	}
	if len(palette) == 0 {
		palette = []int{domain.DefaultDanmakuColor}
	}

	out := make([]domain.Danmaku, len(list))
	copy(out, list)

	balance := 0.5
	paletteIdx := 0
	for i := range out {
		balance += whiteRatio / 100
		if balance >= 1 {
			out[i].Color = domain.DefaultDanmakuColor
			balance -= 1
		} else {
			out[i].Color = palette[paletteIdx%len(palette)]
			paletteIdx++
		}
		if convertTopBottomToScroll && (out[i].Mode == 4 || out[i].Mode == 5) {
			out[i].Mode = 1
		}
	}
	return out
}

func convertModes(list []domain.Danmaku) []domain.Danmaku {
	out := make([]domain.Danmaku, len(list))
	copy(out, list)
	for i := range out {
		if out[i].Mode == 4 || out[i].Mode == 5 {
			out[i].Mode = 1
		}
	}
	return out
}
