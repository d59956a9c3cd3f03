// Command sky-map renders the stored object catalogue as an HTML
// scatter chart (RA against Dec, coloured by detection count). It is a
// debugging aid for eyeballing association output without a UI.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/transient.report/internal/apdb"
	"github.com/banshee-data/transient.report/internal/htm"
	"github.com/banshee-data/transient.report/internal/sky"
)

var (
	dbPath  = flag.String("db", "apdb.sqlite", "Path to the association database")
	outPath = flag.String("out", "sky-map.html", "Output HTML file")
	depth   = flag.Int("depth", htm.DefaultDepth, "Tile subdivision depth the objects were stored at")
)

func main() {
	flag.Parse()

	db, err := apdb.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	indexer, err := htm.NewIndexer(*depth)
	if err != nil {
		log.Fatalf("failed to build tile indexer: %v", err)
	}

	// A whole-sky circle covers every tile range.
	objects, err := db.LoadObjects(indexer.Ranges(sky.MustPoint(0, 0), sky.Degrees(180)))
	if err != nil {
		log.Fatalf("failed to load objects: %v", err)
	}
	if len(objects) == 0 {
		log.Fatal("no objects in database")
	}

	data := make([]opts.ScatterData, 0, len(objects))
	maxDets := 1
	for _, o := range objects {
		n := o.NDetections()
		if n > maxDets {
			maxDets = n
		}
		data = append(data, opts.ScatterData{Value: []interface{}{o.Pos.RADeg, o.Pos.DecDeg, n}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Object Sky Map", Theme: "dark", Width: "1200px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Object Sky Map", Subtitle: fmt.Sprintf("db=%s objects=%d", *dbPath, len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 360, Name: "RA (deg)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -90, Max: 90, Name: "Dec (deg)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxDets),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("objects", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("failed to create output file: %v", err)
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		log.Fatalf("failed to render chart: %v", err)
	}
	log.Printf("wrote %d objects to %s", len(data), *outPath)
}
