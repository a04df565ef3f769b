// SUBGHZ - A decoder for sub-1GHz remote control protocols.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/bemasher/subghz/analyzer"
	"github.com/bemasher/subghz/fff"
	"github.com/bemasher/subghz/keystore"
	"github.com/bemasher/subghz/protocol"
	"github.com/bemasher/subghz/protocols"
	"github.com/bemasher/subghz/pulse"
	"github.com/bemasher/subghz/raw"
	"github.com/bemasher/subghz/receiver"
)

// Preset recorded in saved signal files, the modulation this receiver
// demodulates.
const Preset = "FuriHalSubGhzPresetOok650Async"

var sdr SDR

var (
	buildTag   = "dev"     // v#.#.#
	buildDate  = "unknown" // date -u '+%Y-%m-%d'
	commitHash = "unknown" // git rev-parse HEAD
)

func init() {
	logrus.SetReportCaller(true)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000000",
	})
}

func main() {
	sdr.RegisterFlags()
	RegisterFlags()
	EnvOverride(pflag.CommandLine)
	pflag.Parse()

	if *version {
		fmt.Println("Build Tag: ", buildTag)
		fmt.Println("Build Date:", buildDate)
		fmt.Println("Commit:    ", commitHash)
		os.Exit(0)
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatal(err)
	}
	logrus.SetLevel(level)

	cfg := DefaultConfig()
	if *configFilename != "" {
		if cfg, err = LoadConfigFile(*configFilename); err != nil {
			logrus.Fatalf("%+v", err)
		}
	}
	cfg.Merge(pflag.CommandLine)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *timeLimit != 0 {
		ctx, cancel = context.WithTimeout(ctx, *timeLimit)
		defer cancel()
	}

	log := logrus.WithField("mode", *mode)

	switch *mode {
	case "receive":
		err = receive(ctx, cfg, log)
	case "decode":
		err = decode(ctx, cfg, log)
	case "analyze":
		err = analyze(ctx, cfg, log)
	case "encode":
		err = encode(cfg, log)
	case "keystore":
		err = listKeystore(cfg, log)
	default:
		pflag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// Environment opens every key source the configuration names. A source
// that fails to load is left out: decoders still run, rolling codes are
// reported without their manufacturer.
func Environment(cfg Config, log logrus.FieldLogger) (*protocol.Environment, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}

	env := &protocol.Environment{}
	if cfg.Keystore != "" {
		if env.Keystore, err = keystore.LoadFile(cfg.Keystore, key); err != nil {
			log.WithError(err).Warn("keystore unavailable")
		}
	}
	if cfg.NiceFlorSTable != "" {
		if t, err := keystore.OpenTableFile(cfg.NiceFlorSTable, key); err != nil {
			log.WithError(err).Warn("Nice FloR-S table unavailable")
		} else {
			env.NiceFlorSTable = t
			log.WithField("size", t.Size()).Info("opened Nice FloR-S table")
		}
	}
	if cfg.CameAtomoTable != "" {
		if t, err := keystore.OpenTableFile(cfg.CameAtomoTable, key); err != nil {
			log.WithError(err).Warn("CAME Atomo table unavailable")
		} else {
			env.CameAtomoTable = t
			log.WithField("size", t.Size()).Info("opened CAME Atomo table")
		}
	}

	return env, nil
}

func serveMetrics(addr string, log logrus.FieldLogger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.WithField("addr", addr).Info("serving metrics")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Error("metrics server")
		}
	}()
}

func output() (io.WriteCloser, error) {
	if *outFilename == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(*outFilename)
	return f, errors.Wrap(err, "output")
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// newReceiver builds a receiver over every decoder, with the filters and
// output format the flags ask for.
func newReceiver(cfg Config, log logrus.FieldLogger) (*receiver.Receiver, error) {
	env, err := Environment(cfg, log)
	if err != nil {
		return nil, err
	}

	enc, err := NewEncoder(*format, os.Stdout)
	if err != nil {
		return nil, err
	}

	metrics := receiver.NewMetrics(prometheus.DefaultRegisterer)
	serveMetrics(cfg.Metrics, log)

	rcvr := receiver.New(protocols.NewRegistry(env), enc, metrics, log)
	if *unique {
		rcvr.Filters.Add(receiver.NewUniqueFilter())
	}
	if len(protocolFilter) > 0 {
		rcvr.Filters.Add(protocolFilter)
	}

	return rcvr, nil
}

// recordRaw taps rcvr with a RAW recorder when -raw is given. The returned
// function writes the recording.
func recordRaw(rcvr *receiver.Receiver, frequency uint32) func() error {
	if *rawFilename == "" {
		return func() error { return nil }
	}

	w := raw.Writer{File: raw.NewFile(frequency, Preset)}
	rec := raw.NewDecoder(w.Flush)
	rcvr.Taps = append(rcvr.Taps, rec)

	return func() error {
		rec.Finalize()

		f, err := os.Create(*rawFilename)
		if err != nil {
			return errors.Wrap(err, "raw")
		}
		defer f.Close()

		_, err = w.File.WriteTo(f)
		return errors.Wrap(err, "raw")
	}
}

func receive(ctx context.Context, cfg Config, log logrus.FieldLogger) error {
	rcvr, err := newReceiver(cfg, log)
	if err != nil {
		return err
	}

	if err := sdr.Open(log); err != nil {
		return err
	}
	defer sdr.Close()

	rcvr.Frequency = sdr.CenterFreq
	saveRaw := recordRaw(rcvr, sdr.CenterFreq)

	slicer := pulse.NewSlicer(sdr.SampleRate, *threshold)
	log.WithField("slicer", slicer).Info("receiving")

	samples := make(chan pulse.Sample, BlockSize)
	go sdr.Stream(ctx, slicer, samples, log)

	// Unblock the reader.
	go func() {
		<-ctx.Done()
		sdr.Close()
	}()

	start := time.Now()
	err = rcvr.Run(ctx, samples)
	log.WithField("elapsed", time.Since(start)).Info("stopped")

	if rawErr := saveRaw(); err == nil {
		err = rawErr
	}
	return err
}

// decode runs a RAW saved signal file through every decoder.
func decode(ctx context.Context, cfg Config, log logrus.FieldLogger) error {
	f, err := readFile(*inFilename)
	if err != nil {
		return err
	}

	recording, err := raw.Samples(f)
	if err != nil {
		return errors.Wrap(err, *inFilename)
	}

	rcvr, err := newReceiver(cfg, log)
	if err != nil {
		return err
	}
	if rcvr.Frequency, err = f.Uint32("Frequency"); err != nil {
		return err
	}

	samples := make(chan pulse.Sample)
	go func() {
		defer close(samples)
		for _, s := range settle(recording) {
			select {
			case samples <- s:
			case <-ctx.Done():
				return
			}
		}
	}()

	return rcvr.Run(ctx, samples)
}

// settle ends a recording with the silence a receiver hears once the remote
// stops, so a frame ending with the recording is still terminated.
func settle(recording []pulse.Sample) []pulse.Sample {
	return pulse.Append(recording, pulse.Low(pulse.MaxDuration))
}

func analyze(ctx context.Context, cfg Config, log logrus.FieldLogger) error {
	if err := sdr.Open(log); err != nil {
		return err
	}
	defer sdr.Close()

	a, err := analyzer.New(newRSSIReader(&sdr), cfg.Analyzer, log)
	if err != nil {
		return err
	}

	results := make(chan analyzer.Result)
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, results)
		close(results)
	}()

	for r := range results {
		if r.Detected {
			fmt.Println(r)
		}
	}
	return <-done
}

func readFile(path string) (*fff.File, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "input")
	}
	defer in.Close()

	f, err := fff.Read(in)
	return f, errors.Wrap(err, path)
}

// encode turns a saved signal file into the RAW recording of its
// transmission.
func encode(cfg Config, log logrus.FieldLogger) error {
	f, err := readFile(*inFilename)
	if err != nil {
		return err
	}

	name, err := f.String("Protocol")
	if err != nil {
		return err
	}
	frequency, err := f.Uint32("Frequency")
	if err != nil {
		return err
	}

	env, err := Environment(cfg, log)
	if err != nil {
		return err
	}
	enc, err := protocols.NewEncoder(name, env)
	if err != nil {
		return err
	}
	if err := enc.Deserialize(f); err != nil {
		return errors.Wrap(err, name)
	}

	w := raw.Writer{File: raw.NewFile(frequency, Preset)}
	rec := raw.NewDecoder(w.Flush)
	pulse.Feed(rec, protocol.Drain(enc))
	rec.Finalize()

	log.WithFields(logrus.Fields{
		"protocol": name,
		"samples":  rec.Total(),
	}).Info("encoded")

	out, err := output()
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = w.File.WriteTo(out)
	return err
}

// listKeystore prints the manufacturer names of a keystore and, with
// -encrypt, writes it back encrypted under a fresh IV.
func listKeystore(cfg Config, log logrus.FieldLogger) error {
	key, err := cfg.Key()
	if err != nil {
		return err
	}

	path := *inFilename
	if path == "" {
		path = cfg.Keystore
	}
	ks, err := keystore.LoadFile(path, key)
	if err != nil {
		return err
	}

	if !*encrypt {
		for _, e := range ks.Entries {
			fmt.Println(e)
		}
		return nil
	}

	if key == nil {
		return keystore.ErrKeyRequired
	}

	iv := make([]byte, keystore.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return err
	}

	out, err := output()
	if err != nil {
		return err
	}
	defer out.Close()

	log.WithField("entries", ks.Len()).Info("encrypting keystore")
	return ks.Save(out, key, iv)
}
