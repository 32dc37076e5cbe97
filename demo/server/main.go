package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	shapefile "github.com/tingold/orb-shapefile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// server serializes access to a single Reader, which is not safe for concurrent use.
type server struct {
	mu     sync.Mutex
	reader *shapefile.Reader
	name   string
	log    *zap.Logger
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	opts := shapefile.DefaultOptions()
	opts.Logger = logger
	opts.Encoding = cfg.Shapefile.Encoding
	opts.OnOrphanHole = func(*shapefile.OrphanHoleError) { orphanHoles.Inc() }

	reader, err := shapefile.NewReader(cfg.Shapefile.Path, opts)
	if err != nil {
		logger.Fatal("open shapefile", zap.String("path", cfg.Shapefile.Path), zap.Error(err))
	}

	name := cfg.Shapefile.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(cfg.Shapefile.Path), filepath.Ext(cfg.Shapefile.Path))
	}
	s := &server{reader: reader, name: name, log: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /data.geojson", instrument("geojson", s.handleGeoJSON))
	mux.HandleFunc("GET /data.fgb", instrument("fgb", s.handleFlatGeobuf))
	mux.HandleFunc("GET /fields", instrument("fields", s.handleFields))
	mux.HandleFunc("GET /features/{index}", instrument("feature", s.handleFeature))
	mux.Handle("GET /metrics", promhttp.Handler())

	logger.Info("server starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("shapefile", cfg.Shapefile.Path),
		zap.Stringer("shape_type", reader.Header().ShapeType),
		zap.Int("records", reader.RecordCount()),
		zap.String("encoding", reader.Encoding()))
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func (s *server) readAll() (*shapefile.FeatureCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader.ReadAll()
}

func (s *server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc, err := s.readAll()
	if err != nil {
		s.fail(w, "read features", err)
		return
	}
	body, err := json.Marshal(fc)
	if err != nil {
		s.fail(w, "encode geojson", err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(body)
	featuresServed.WithLabelValues("geojson").Add(float64(len(fc.Features)))
}

func (s *server) handleFlatGeobuf(w http.ResponseWriter, r *http.Request) {
	fc, err := s.readAll()
	if err != nil {
		s.fail(w, "read features", err)
		return
	}

	var buf bytes.Buffer
	stats, err := shapefile.WriteFlatGeobuf(&buf, fc, &shapefile.WriteOptions{
		Name:         s.name,
		IncludeIndex: true,
		Logger:       s.log,
	})
	if err != nil {
		s.fail(w, "encode flatgeobuf", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Write(buf.Bytes())
	featuresServed.WithLabelValues("fgb").Add(float64(stats.Features))
	nullGeometriesSkipped.Add(float64(stats.SkippedNull))
}

type fieldInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Length   int    `json:"length"`
	Decimals int    `json:"decimals"`
}

func (s *server) handleFields(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fields := s.reader.Fields()
	s.mu.Unlock()

	out := make([]fieldInfo, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldInfo{
			Name:     f.Name,
			Type:     f.Type.TypeName(),
			Length:   f.Length,
			Decimals: f.Decimals,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *server) handleFeature(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "feature index must be an integer", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	f, err := s.reader.ReadFeature(index)
	s.mu.Unlock()
	if errors.Is(err, shapefile.ErrIndexOutOfRange) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, "read feature", err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	json.NewEncoder(w).Encode(f)
	featuresServed.WithLabelValues("feature").Inc()
}

func (s *server) fail(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}
