package common

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Narration  NarrationConfig
	Data       DataConfig
	Worker     WorkerConfig
	Log        LogConfig
	Thresholds Thresholds
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftotext        string
	Pdftoppm         string
	Tesseract        string
	TessdataDir      string
	ArtifactCacheDir string
	DPI              int
	Preprocess       bool
}

// LLMConfig holds configuration for structured field extraction
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// NarrationConfig holds configuration for the reasoning narrator
type NarrationConfig struct {
	Provider     string // openai | gemini | template
	Model        string
	APIKey       string
	GeminiAPIKey string
	BaseURL      string
	Timeout      time.Duration
}

// DataConfig locates inputs and outputs on disk
type DataConfig struct {
	DataDir        string
	PODatabasePath string
	OutputDir      string
	InboxDir       string
	NamedInvoices  map[string]string
}

// WorkerConfig sizes the processing pool
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	InvoiceTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Thresholds holds every band used by matching, detection and resolution.
// Loaded once and passed by value.
type Thresholds struct {
	PriceAutoApproveTolerance float64
	PriceFlagReview           float64
	PriceEscalate             float64

	TotalVarianceAmount     float64
	TotalVariancePercent    float64
	TotalVarianceMediumBand float64
	TotalVarianceHighBand   float64
	QuantityHighBand        float64

	ExtractionHighConfidence       float64
	ExtractionAcceptableConfidence float64
	MatchHighConfidence            float64
	MatchAcceptableConfidence      float64

	SupplierMatch  float64
	LineItemMatch  float64
	CandidateMatch float64

	MaxDiscrepanciesBeforeEscalate int
}

// DefaultThresholds returns the production bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceAutoApproveTolerance: 0.02,
		PriceFlagReview:           0.05,
		PriceEscalate:             0.15,

		TotalVarianceAmount:     5.00,
		TotalVariancePercent:    0.01,
		TotalVarianceMediumBand: 0.05,
		TotalVarianceHighBand:   0.10,
		QuantityHighBand:        0.10,

		ExtractionHighConfidence:       0.90,
		ExtractionAcceptableConfidence: 0.70,
		MatchHighConfidence:            0.85,
		MatchAcceptableConfidence:      0.50,

		SupplierMatch:  0.80,
		LineItemMatch:  0.60,
		CandidateMatch: 0.50,

		MaxDiscrepanciesBeforeEscalate: 3,
	}
}

// DefaultNamedInvoices is the fixed invoice set addressable by number.
var DefaultNamedInvoices = map[string]string{
	"1": "Invoice_1_Baseline.pdf",
	"2": "Invoice_2_Scanned.pdf",
	"3": "Invoice_3_Different_Format.pdf",
	"4": "Invoice_4_Price_Trap.pdf",
	"5": "Invoice_5_Missing_PO.pdf",
}

// LoadConfig loads configuration from environment variables, reading .env first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	def := DefaultThresholds()
	dataDir := getEnv("DATA_DIR", "./data")
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		OCR: OCRConfig{
			Pdftotext:        getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:         getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Tesseract:        getEnv("TESSERACT_BIN", "tesseract"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			Preprocess:       getEnvAsBool("OCR_PREPROCESS", true),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Narration: NarrationConfig{
			Provider:     strings.ToLower(getEnv("NARRATION_PROVIDER", "openai")),
			Model:        getEnv("NARRATION_MODEL", "gpt-4o-mini"),
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", ""),
			Timeout:      getEnvAsDuration("NARRATION_TIMEOUT", 30*time.Second),
		},
		Data: DataConfig{
			DataDir:        dataDir,
			PODatabasePath: getEnv("PO_DATABASE_PATH", filepath.Join(dataDir, "purchase_orders.json")),
			OutputDir:      getEnv("OUTPUT_DIR", "./outputs"),
			InboxDir:       getEnv("INBOX_DIR", ""),
			NamedInvoices:  DefaultNamedInvoices,
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKERS", 4),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 256),
			InvoiceTimeout: getEnvAsDuration("INVOICE_TIMEOUT", 3*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Thresholds: Thresholds{
			PriceAutoApproveTolerance: getEnvAsFloat64("PRICE_AUTO_APPROVE_TOLERANCE", def.PriceAutoApproveTolerance),
			PriceFlagReview:           getEnvAsFloat64("PRICE_FLAG_REVIEW", def.PriceFlagReview),
			PriceEscalate:             getEnvAsFloat64("PRICE_ESCALATE", def.PriceEscalate),

			TotalVarianceAmount:     getEnvAsFloat64("TOTAL_VARIANCE_AMOUNT", def.TotalVarianceAmount),
			TotalVariancePercent:    getEnvAsFloat64("TOTAL_VARIANCE_PERCENT", def.TotalVariancePercent),
			TotalVarianceMediumBand: def.TotalVarianceMediumBand,
			TotalVarianceHighBand:   def.TotalVarianceHighBand,
			QuantityHighBand:        def.QuantityHighBand,

			ExtractionHighConfidence:       getEnvAsFloat64("EXTRACTION_HIGH_CONFIDENCE", def.ExtractionHighConfidence),
			ExtractionAcceptableConfidence: getEnvAsFloat64("EXTRACTION_ACCEPTABLE_CONFIDENCE", def.ExtractionAcceptableConfidence),
			MatchHighConfidence:            getEnvAsFloat64("MATCH_HIGH_CONFIDENCE", def.MatchHighConfidence),
			MatchAcceptableConfidence:      getEnvAsFloat64("MATCH_ACCEPTABLE_CONFIDENCE", def.MatchAcceptableConfidence),

			SupplierMatch:  getEnvAsFloat64("FUZZY_SUPPLIER_THRESHOLD", def.SupplierMatch),
			LineItemMatch:  def.LineItemMatch,
			CandidateMatch: def.CandidateMatch,

			MaxDiscrepanciesBeforeEscalate: getEnvAsInt("MAX_DISCREPANCIES_BEFORE_ESCALATE", def.MaxDiscrepanciesBeforeEscalate),
		},
	}
}

// NamedInvoicePath resolves a named invoice ("1".."5") to its path under DataDir.
func (d DataConfig) NamedInvoicePath(name string) (string, bool) {
	file, ok := d.NamedInvoices[strings.TrimSpace(name)]
	if !ok {
		return "", false
	}
	return filepath.Join(d.DataDir, "invoices", file), true
}

// NamedInvoiceKeys returns the configured names in order.
func (d DataConfig) NamedInvoiceKeys() []string {
	keys := make([]string, 0, len(d.NamedInvoices))
	for k := range d.NamedInvoices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Data.PODatabasePath == "" && c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "PO_DATABASE_PATH or DB_URL is required", ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	switch c.Narration.Provider {
	case "openai", "gemini", "template":
	default:
		return NewAppError("CONFIG_ERROR", "NARRATION_PROVIDER must be openai, gemini or template", ErrInvalidInput)
	}
	return c.Thresholds.Validate()
}

// Validate checks that the bands are ordered.
func (t Thresholds) Validate() error {
	switch {
	case !(t.PriceAutoApproveTolerance <= t.PriceFlagReview && t.PriceFlagReview <= t.PriceEscalate):
		return NewAppError("CONFIG_ERROR", "price thresholds must be ordered tolerance <= flag <= escalate", ErrInvalidInput)
	case t.ExtractionAcceptableConfidence > t.ExtractionHighConfidence:
		return NewAppError("CONFIG_ERROR", "extraction acceptable confidence exceeds high confidence", ErrInvalidInput)
	case t.MatchAcceptableConfidence > t.MatchHighConfidence:
		return NewAppError("CONFIG_ERROR", "match acceptable confidence exceeds high confidence", ErrInvalidInput)
	case t.MaxDiscrepanciesBeforeEscalate < 0:
		return NewAppError("CONFIG_ERROR", "discrepancy ceiling must not be negative", ErrInvalidInput)
	}
	return nil
}
