// Package dataset implements domain.DatasetSource: weighted random
// sampling of job templates from a CSV statistics file, each expanded
// into a multi-layer domain.JobSpec.
//
// Grounded on original_source/src/dataset_builder.py's generate_dataset
// (count-weighted np.random.choice over CSV rows) and
// src/jobs_handler.py's message_data (layer-count randomization and
// even per-layer CPU/GPU/bandwidth splitting). Structurally grounded on
// the teacher's internal/infra/registry.Manager for the "load a CSV-like
// catalog once at construction, serve from memory after" shape.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/plebiscito-net/plebiscito/internal/domain"
)

// Row is one line of the dataset statistics file: a (cpu, gpu, duration,
// bandwidth) template and the relative frequency it should be sampled
// with.
type Row struct {
	Count            float64
	NumCPU           float64
	NumGPU           float64
	DurationMedian   time.Duration
	BandwidthMedian  float64
}

// Config controls job-template expansion.
type Config struct {
	MinLayers int // default 3
	MaxLayers int // default 6
	TotalJobs int // how many jobs SelectJobs will emit before reporting exhausted
}

// DefaultConfig mirrors the original's hardcoded min_l=3, max_l=6.
func DefaultConfig() Config {
	return Config{MinLayers: 3, MaxLayers: 6, TotalJobs: 100}
}

// WeightedSampler is a domain.DatasetSource backed by a fixed set of
// Rows, sampled count-weighted, same as the original's
// np.random.choice(..., p=probabilities).
type WeightedSampler struct {
	cfg      Config
	rows     []Row
	cumWeight []float64
	totalW   float64
	rng      *rand.Rand

	emitted int
}

// LoadCSV reads a dataset statistics file with header
// "count,num_cpu,num_gpu,duration_median,bandwidth_median".
func LoadCSV(r io.Reader, cfg Config, rng *rand.Rand) (*WeightedSampler, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	if len(header) < 5 {
		return nil, fmt.Errorf("dataset: expected 5 columns, got %d", len(header))
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: read row: %w", err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset: no rows in statistics file")
	}
	return New(rows, cfg, rng), nil
}

func parseRow(rec []string) (Row, error) {
	count, err := strconv.ParseFloat(rec[0], 64)
	if err != nil {
		return Row{}, fmt.Errorf("dataset: count: %w", err)
	}
	cpu, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return Row{}, fmt.Errorf("dataset: num_cpu: %w", err)
	}
	gpu, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return Row{}, fmt.Errorf("dataset: num_gpu: %w", err)
	}
	durMedian, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Row{}, fmt.Errorf("dataset: duration_median: %w", err)
	}
	bw, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return Row{}, fmt.Errorf("dataset: bandwidth_median: %w", err)
	}
	return Row{
		Count:           count,
		NumCPU:          cpu,
		NumGPU:          gpu,
		DurationMedian:  time.Duration(durMedian) * time.Second,
		BandwidthMedian: bw,
	}, nil
}

// New builds a sampler directly from in-memory rows — used by LoadCSV
// and directly by tests.
func New(rows []Row, cfg Config, rng *rand.Rand) *WeightedSampler {
	if cfg.MinLayers == 0 {
		cfg = DefaultConfig()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	cum := make([]float64, len(rows))
	total := 0.0
	for i, r := range rows {
		total += r.Count
		cum[i] = total
	}
	return &WeightedSampler{cfg: cfg, rows: rows, cumWeight: cum, totalW: total, rng: rng}
}

// SelectJobs emits one newly-sampled JobSpec per call until Config.TotalJobs
// have been emitted, after which it reports exhausted=true and returns no
// further jobs.
func (s *WeightedSampler) SelectJobs(at time.Time) ([]domain.JobSpec, bool) {
	if s.emitted >= s.cfg.TotalJobs {
		return nil, true
	}
	row := s.sampleRow()
	spec := s.expand(row)
	s.emitted++
	return []domain.JobSpec{spec}, s.emitted >= s.cfg.TotalJobs
}

func (s *WeightedSampler) sampleRow() Row {
	target := s.rng.Float64() * s.totalW
	for i, cum := range s.cumWeight {
		if target <= cum {
			return s.rows[i]
		}
	}
	return s.rows[len(s.rows)-1]
}

// expand splits one sampled row into an evenly-layered JobSpec, the same
// randomization the original's message_data applies: a random layer
// count in [MinLayers, MaxLayers], demand split evenly per layer,
// bandwidth halved, and N_layer_max trimmed down from the full layer
// count by up to MinLayers-1.
func (s *WeightedSampler) expand(row Row) domain.JobSpec {
	layerNumber := s.cfg.MinLayers + s.rng.Intn(s.cfg.MaxLayers-s.cfg.MinLayers+1)

	gpu := row.NumGPU / float64(layerNumber)
	cpu := row.NumCPU / float64(layerNumber)
	bw := row.BandwidthMedian / 2

	nnGPU := make([]float64, layerNumber)
	nnCPU := make([]float64, layerNumber)
	nnBW := make([]float64, layerNumber)
	for i := range nnGPU {
		nnGPU[i] = gpu
		nnCPU[i] = cpu
		nnBW[i] = bw
	}

	nLayerMax := layerNumber - s.rng.Intn(s.cfg.MinLayers)

	return domain.JobSpec{
		JobID:      uuid.NewString(),
		NLayer:     layerNumber,
		NLayerMin:  1,
		NLayerMax:  nLayerMax,
		NNCpu:      nnCPU,
		NNGpu:      nnGPU,
		NNDataSize: nnBW,
		Duration:   row.DurationMedian,
		// Speedup 0 with Increase set lets every capable node clear the
		// bidding engine's speedup direction check.
		Increase: true,
	}
}
