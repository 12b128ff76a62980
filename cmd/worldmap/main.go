// Command worldmap renders a top-down PNG of generated terrain around the
// origin, without running the simulation.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"voxelsim/internal/config"
	"voxelsim/internal/game"
	"voxelsim/internal/registry"
	"voxelsim/internal/terrain"
	"voxelsim/internal/voxel"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	radius := flag.Int("radius", 8, "chunks around the origin to render")
	scale := flag.Int("scale", 4, "pixels per block")
	out := flag.String("out", "worldmap.png", "output PNG path")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	gen, dim, err := game.NewGenerator(cfg)
	if err != nil {
		log.Fatal(err)
	}

	reg := registry.Default()
	m := Render(gen, dim, reg, cfg.World.ChunkSize, cfg.World.MaxHeight, *radius)
	scaled := image.NewRGBA(image.Rect(0, 0, m.Bounds().Dx()**scale, m.Bounds().Dy()**scale))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), m, m.Bounds(), draw.Src, nil)
	caption(scaled, fmt.Sprintf("seed %d  %s  r=%d", cfg.World.Seed, dim, *radius))

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	if err := png.Encode(f, scaled); err != nil {
		_ = f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %s (%dx%d)", *out, scaled.Bounds().Dx(), scaled.Bounds().Dy())
}

// Render draws one pixel per column for every chunk within radius of the
// origin, coloured by the visible surface block and shaded by its height.
func Render(gen *terrain.Generator, dim terrain.Dimension, reg *registry.Registry, size, height, radius int) *image.RGBA {
	span := (2*radius + 1) * size
	img := image.NewRGBA(image.Rect(0, 0, span, span))
	for cx := -radius; cx <= radius; cx++ {
		for cz := -radius; cz <= radius; cz++ {
			key := voxel.ChunkKey{CX: cx, CZ: cz}
			req := gen.Plan(key, size, height, dim)
			grid := gen.Generate(req, gen.DecorationRNG(key, dim))
			px, pz := (cx+radius)*size, (cz+radius)*size
			for x := 0; x < size; x++ {
				for z := 0; z < size; z++ {
					y := surface(grid, x, z, dim)
					var id voxel.BlockID
					if y >= 0 {
						id = grid.At(x, y, z)
					}
					img.Set(px+x, pz+z, shade(blockColor(reg.Name(id)), y, height))
				}
			}
		}
	}
	return img
}

// surface finds the visible top block. In the nether the scan starts below
// the ceiling.
func surface(g *voxel.Grid, x, z int, dim terrain.Dimension) int {
	if dim != terrain.Nether {
		return g.TopAt(x, z)
	}
	y := g.Height - 2
	for y > 0 && g.At(x, y, z) != voxel.Air {
		y--
	}
	for ; y >= 0; y-- {
		if g.At(x, y, z) != voxel.Air {
			return y
		}
	}
	return -1
}

var palette = map[string]color.RGBA{
	"grass":         {95, 159, 53, 255},
	"dirt":          {134, 96, 67, 255},
	"water":         {48, 90, 200, 255},
	"oak_log":       {102, 81, 51, 255},
	"oak_leaves":    {60, 120, 40, 255},
	"sand":          {219, 207, 163, 255},
	"stone":         {125, 125, 125, 255},
	"granite":       {149, 103, 85, 255},
	"coal_ore":      {90, 90, 90, 255},
	"iron_ore":      {150, 130, 115, 255},
	"oak_planks":    {162, 130, 78, 255},
	"snow":          {240, 250, 250, 255},
	"spruce_log":    {58, 37, 16, 255},
	"spruce_leaves": {50, 90, 60, 255},
	"mycelium":      {111, 99, 107, 255},
	"lava":          {207, 92, 20, 255},
	"netherrack":    {97, 38, 38, 255},
	"glowstone":     {248, 215, 120, 255},
	"bedrock":       {40, 40, 40, 255},
}

func blockColor(name string) color.RGBA {
	if c, ok := palette[name]; ok {
		return c
	}
	return color.RGBA{255, 0, 255, 255}
}

// shade darkens low columns and brightens high ones.
func shade(c color.RGBA, y, height int) color.RGBA {
	if y < 0 {
		return color.RGBA{0, 0, 0, 255}
	}
	f := 0.6 + 0.8*float64(y)/float64(height)
	ch := func(v uint8) uint8 { return uint8(min(255, float64(v)*f)) }
	return color.RGBA{ch(c.R), ch(c.G), ch(c.B), 255}
}

func caption(img draw.Image, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, 14),
	}
	d.DrawString(text)
}
