package main

import (
	"fmt"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/revierkompass/revierkompass/stations"
)

func importStations(ctx *cli.Context) error {
	input := ctx.String("input")
	output := ctx.String("output")

	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("opening csv export: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stating csv export: %w", err)
	}

	fmt.Printf("Importing %s (%s)\n", input, humanize.IBytes(uint64(info.Size())))

	bar := pb.Full.Start64(info.Size())
	ds, skipped, err := stations.ImportCSV(bar.NewProxyReader(file))
	bar.Finish()
	if err != nil {
		return err
	}

	if err := stations.SaveFile(ds, output); err != nil {
		return err
	}

	fmt.Printf("Imported %s praesidien and %s reviere",
		humanize.Comma(int64(len(ds.Praesidien))), humanize.Comma(int64(len(ds.Reviere))))
	if skipped > 0 {
		fmt.Printf(", skipped %d rows with bad coordinates", skipped)
	}
	fmt.Println()

	if out, err := os.Stat(output); err == nil {
		fmt.Printf("Saved to %s (%s)\n", output, humanize.IBytes(uint64(out.Size())))
	}

	return nil
}
