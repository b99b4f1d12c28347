package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/urfave/cli/v2"

	"github.com/leopardracer/deep-prove/layered"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "print the reductions a model compiles to",
		Flags: []cli.Flag{
			pathFlag("model", "CBOR encoded model"),
			&cli.StringFlag{Name: "chart", Usage: "write an HTML chart of per-layer proof sizes"},
		},
		Action: func(c *cli.Context) error {
			m, err := readModel(c.String("model"))
			if err != nil {
				return err
			}
			plan, err := layered.Compile(m)
			if err != nil {
				return err
			}
			stats := plan.GetStats()
			printStats(c.App.Writer, plan, &stats)
			if path := c.String("chart"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				return renderStats(f, &stats)
			}
			return nil
		},
	}
}

func printStats(w io.Writer, plan *layered.Plan, s *layered.Stats) {
	fmt.Fprintf(w, "layers: %d, input vars: %d, output vars: %d\n", s.NbLayer, s.InputVars, s.OutputVars)
	fmt.Fprintf(w, "sumchecks: %d, rounds: %d, coefficients: %d, lookups: %d\n", s.NbSumcheck, s.NbRounds, s.NbCoeffs, s.NbLookups)
	for i, l := range s.Layers {
		fmt.Fprintf(w, "%3d %-40s rounds=%-4d coeffs=%-5d mul=%-7d add=%-5d lookups=%d\n",
			i, plan.Steps[i].Layer.Describe(), l.NbRounds, l.NbCoeffs, l.NbMul, l.NbAdd, l.NbLookups)
	}
}

func renderStats(w io.Writer, s *layered.Stats) error {
	labels := make([]string, len(s.Layers))
	rounds := make([]opts.BarData, len(s.Layers))
	coeffs := make([]opts.BarData, len(s.Layers))
	for i, l := range s.Layers {
		labels[i] = fmt.Sprintf("%d %s", i, l.Kind)
		rounds[i] = opts.BarData{Value: l.NbRounds}
		coeffs[i] = opts.BarData{Value: l.NbCoeffs}
	}
	title := fmt.Sprintf("%d layers, %d round coefficients", s.NbLayer, s.NbCoeffs)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "proof size per layer", Subtitle: title}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "zkml inspect", Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).
		AddSeries("rounds", rounds).
		AddSeries("coefficients", coeffs)

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}
