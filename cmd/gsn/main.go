// Command gsn trains a Generative Stochastic Network on MNIST.
package main

import (
	"flag"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorgonia/gsn"
	"github.com/gorgonia/gsn/encoding/gif"
	"github.com/gorgonia/gsn/encoding/mjpeg"
	"github.com/gorgonia/gsn/gsnet"
	"github.com/gorgonia/gsn/mnist"
	"go.dedis.ch/onet/v3/log"

	_ "net/http/pprof"
)

var (
	confFile  = flag.String("config", "", "toml file with the model and training options")
	dataDir   = flag.String("data", "datasets/mnist", "directory of the MNIST IDX files")
	epochs    = flag.Int("epochs", 0, "overrides n_epoch when positive")
	load      = flag.String("load", "", "parameters to start from, as written by SaveParams")
	addr      = flag.String("http", "", "serve the samples as mjpeg on /stream and epoch summaries on /ws")
	gifFile   = flag.String("gif", "", "write one frame per epoch to this file")
	dotFile   = flag.String("dot", "", "write the layer graph in dot format to this file")
	scale     = flag.Int("scale", 2, "upscaling factor of the images")
	debug     = flag.Int("debug", 1, "debug level")
	binarized = flag.Bool("binarize", true, "round pixels to 0 or 1")
)

func loadConfigs(inputSize int) (gsnet.Config, gsn.TrainConfig, error) {
	if *confFile == "" {
		return gsnet.DefaultConf(inputSize), gsn.DefaultTrainConfig(), nil
	}
	conf, err := gsnet.LoadConfig(*confFile, inputSize)
	if err != nil {
		return conf, gsn.TrainConfig{}, err
	}
	trainConf, err := gsn.LoadTrainConfig(*confFile)
	return conf, trainConf, err
}

func main() {
	flag.Parse()
	log.SetDebugVisible(*debug)

	data, err := mnist.Load(*dataDir, *binarized)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	conf, trainConf, err := loadConfigs(data.ExampleShape())
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if *epochs > 0 {
		trainConf.Epochs = *epochs
	}
	if err = os.MkdirAll(conf.OutputPath, 0755); err != nil {
		log.Fatal(err)
	}

	model := gsnet.New(conf)
	if err = model.Init(); err != nil {
		log.Fatalf("%+v", err)
	}
	defer model.Close()
	if *load != "" {
		if err = model.LoadParams(*load); err != nil {
			log.Fatalf("%+v", err)
		}
		// loaded parameters include the visible bias
		model.VisInit = false
	}
	if *dotFile != "" {
		if err = ioutil.WriteFile(*dotFile, []byte(model.ToDot()), 0644); err != nil {
			log.Fatal(err)
		}
	}

	var outEnc encoders
	if *gifFile != "" {
		f, err := os.Create(*gifFile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		enc := gif.NewGifEncoder(0, 0, *scale)
		enc.Writer = f
		outEnc = append(outEnc, enc)
	}
	if *addr != "" {
		stream := mjpeg.NewEncoder(0, 0, *scale)
		ws := NewEncoder()
		outEnc = append(outEnc, stream, ws)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/stream", stream)
			mux.Handle("/ws", ws)
			log.Lvl1("serving on", *addr)
			if err := http.ListenAndServe(*addr, mux); err != nil {
				log.Error(err)
			}
		}()
	}

	var enc gsn.OutputEncoder
	if len(outEnc) > 0 {
		enc = outEnc
	}
	trainer, err := gsn.NewTrainer(model, data, trainConf, enc)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	defer trainer.Close()

	n, err := trainer.Train()
	if err != nil {
		log.Errorf("training stopped after %d epochs: %+v", n, err)
	}
	log.Lvlf1("trained for %d epochs", n)

	for _, err := range save(model, trainer, trainConf.Samples, *scale) {
		log.Error(err)
	}
}

// save writes the final parameters, reconstructions and statistics under the
// output path of the model.
func save(model *gsnet.GSN, trainer *gsn.Trainer, samples, scale int) (errs []error) {
	out := func(name string) string { return filepath.Join(model.OutputPath, name) }
	// SaveParams resolves the name under OutputPath itself
	if err := model.SaveParams("trained_final.gob"); err != nil {
		errs = append(errs, err)
	}
	if err := trainer.SaveReconstruction(out("reconstruction.png"), samples, scale); err != nil {
		errs = append(errs, err)
	}
	if err := trainer.Dump(out("statistics.csv")); err != nil {
		errs = append(errs, err)
	}
	if err := trainer.Plot(out("statistics.png")); err != nil {
		errs = append(errs, err)
	}
	return errs
}
