package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              int
	UploadDirectory   string
	MaxUploadBytes    int64
	ModelPath         string
	ModelBackend      string // "onnx", "dnn" or "off"
	OnnxLibraryPath   string // optional path to the onnxruntime shared library
	InferenceTarget   string // "cpu" or "cuda", dnn backend only
	NumClasses        int
	SkyClasses        []int
	VegetationClasses []int
	ForegroundClasses []int
	RequestTimeout    time.Duration
	DeviceMemoryLimit int64
	DatabasePath      string
	LogLevel          string
}

// Load reads configuration from the environment, applying defaults for
// anything unset. A .env file in the working directory is honored when
// present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:              getEnvAsInt("PORT", 5000),
		UploadDirectory:   getEnv("UPLOAD_DIR", filepath.Join("static", "uploads")),
		MaxUploadBytes:    getEnvAsInt64("MAX_UPLOAD_BYTES", 16<<20),
		ModelPath:         getEnv("MODEL_PATH", filepath.Join("models", "deeplabv3_resnet50.onnx")),
		ModelBackend:      getEnv("MODEL_BACKEND", "onnx"),
		OnnxLibraryPath:   getEnv("ONNXRUNTIME_LIB", ""),
		InferenceTarget:   getEnv("INFERENCE_TARGET", "cpu"),
		NumClasses:        getEnvAsInt("NUM_CLASSES", 21),
		SkyClasses:        getEnvAsIntList("SKY_CLASSES", []int{0, 2, 9}),
		VegetationClasses: getEnvAsIntList("VEGETATION_CLASSES", []int{3, 8}),
		ForegroundClasses: getEnvAsIntList("FOREGROUND_CLASSES", []int{1, 15}),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		DeviceMemoryLimit: getEnvAsInt64("DEVICE_MEMORY_LIMIT", 2<<30),
		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join("data", "transforms.db")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsIntList parses comma-separated class ids, e.g. "0,2,9". Entries
// that fail to parse invalidate the whole value and the default is kept.
func getEnvAsIntList(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		ids = append(ids, id)
	}
	return ids
}
