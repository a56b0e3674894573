package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"flowsom/internal/model"
	"flowsom/internal/som"
	"flowsom/internal/storage"
	fcapi "flowsom/pkg/flowsom"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reference":
		return runReference(ctx, args[1:])
	case "transform":
		return runTransform(ctx, args[1:])
	case "dataset":
		return runDataset(ctx, args[1:])
	case "prepare":
		return runPrepare(ctx, args[1:])
	case "grid":
		return runGrid(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "flowsom.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := fcapi.New(fcapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReference(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reference", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "flowsom.db", "sqlite database path")
	configPath := fs.String("config", "", "JSON reference training config")
	resume := fs.Bool("resume", false, "resume from the run's last checkpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return usageError("reference requires -config")
	}

	req, eventPaths, err := loadReferenceConfig(*configPath)
	if err != nil {
		return err
	}
	corpus, err := readEventFiles(eventPaths)
	if err != nil {
		return err
	}

	client, err := fcapi.New(fcapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	var rec model.Grid
	if *resume {
		rec, err = client.ResumeReference(ctx, req, corpus)
	} else {
		rec, err = client.TrainReference(ctx, req, corpus)
	}
	if err != nil {
		return err
	}

	fmt.Printf("reference trained id=%s tube=%s dims=%dx%d markers=%d\n",
		rec.ID, rec.Tube, rec.Rows, rec.Cols, len(rec.Markers))
	return nil
}

func runTransform(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transform", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "flowsom.db", "sqlite database path")
	configPath := fs.String("config", "", "JSON transform config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return usageError("transform requires -config")
	}

	req, caseFiles, err := loadTransformConfig(*configPath)
	if err != nil {
		return err
	}
	cases, err := readCaseFiles(caseFiles)
	if err != nil {
		return err
	}

	client, err := fcapi.New(fcapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	grids, err := client.TransformCases(ctx, req, cases)
	if err != nil {
		return err
	}
	for _, g := range grids {
		fmt.Printf("case grid id=%s tube=%s dims=%dx%d\n", g.ID, g.Tube, g.Rows, g.Cols)
	}
	return nil
}

func runDataset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dataset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "flowsom.db", "sqlite database path")
	configPath := fs.String("config", "", "JSON dataset metadata")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return usageError("dataset requires -config")
	}

	ds, err := loadDatasetConfig(*configPath)
	if err != nil {
		return err
	}

	client, err := fcapi.New(fcapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	if err := client.SaveDataset(ctx, ds); err != nil {
		return err
	}
	fmt.Printf("dataset %s registered: %d cases, %d tubes\n", ds.ID, len(ds.Cases), len(ds.Config.Tubes))
	return nil
}

func runPrepare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "flowsom.db", "sqlite database path")
	configPath := fs.String("config", "", "JSON prepare config")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return usageError("prepare requires -config")
	}

	req, err := loadPrepareConfig(*configPath)
	if err != nil {
		return err
	}

	client, err := fcapi.New(fcapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	prepared, err := client.PrepareTrainingData(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("train batches=%d validate batches=%d classes=%s\n",
		prepared.Train.Len(), prepared.Validate.Len(),
		strings.Join(prepared.Binarizer.Classes(), ","))
	if prepared.Train.Len() > 0 {
		batch, err := prepared.Train.Batch(ctx, 0)
		if err != nil {
			return err
		}
		for t, tensors := range batch.Inputs {
			if len(tensors) == 0 {
				continue
			}
			rows := len(tensors[0])
			cols := 0
			if rows > 0 {
				cols = len(tensors[0][0])
			}
			fmt.Printf("tube[%d]: %d cases of %dx%d\n", t, len(tensors), rows, cols)
		}
	}
	return nil
}

func runGrid(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("grid", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "flowsom.db", "sqlite database path")
	id := fs.String("id", "", "grid id")
	image := fs.String("image", "", "render a weight image from up to three comma-separated markers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return usageError("grid requires -id")
	}

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	rec, ok, err := store.GetGrid(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("grid %s not found", *id)
	}
	fmt.Printf("grid id=%s name=%s tube=%s dims=%dx%d trained=%v markers=%s\n",
		rec.ID, rec.Name, rec.Tube, rec.Rows, rec.Cols, rec.Trained,
		strings.Join(rec.Markers, ","))

	if *image != "" {
		markers, err := parseImageSpec(*image)
		if err != nil {
			return err
		}
		grid, err := som.GridFromRecord(rec)
		if err != nil {
			return err
		}
		img, err := grid.WeightImage(markers)
		if err != nil {
			return err
		}
		printWeightImage(img, markers)
	}
	return nil
}

// parseImageSpec maps a comma-separated marker list onto the red, green
// and blue image channels. An empty entry leaves its channel dark.
func parseImageSpec(spec string) ([3]string, error) {
	var markers [3]string
	parts := strings.Split(spec, ",")
	if len(parts) > 3 {
		return markers, fmt.Errorf("image takes at most three markers, got %d", len(parts))
	}
	for i, p := range parts {
		markers[i] = strings.TrimSpace(p)
	}
	return markers, nil
}

func printWeightImage(img [][][3]float64, markers [3]string) {
	fmt.Printf("image %dx%d\n", len(img), len(img[0]))
	channels := [3]string{"r", "g", "b"}
	for i, name := range markers {
		if name == "" {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, row := range img {
			for _, px := range row {
				lo = math.Min(lo, px[i])
				hi = math.Max(hi, px[i])
			}
		}
		fmt.Printf("channel %s=%s range=[%.4f, %.4f]\n", channels[i], name, lo, hi)
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: flowsomctl <init|reference|transform|dataset|prepare|grid> [flags]", msg)
}
