package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from environment variables (optionally via .env) with
// defaults matching a single-node development setup.
type Config struct {
	// Node role: "producer" owns the encode pipeline, "reader" is a
	// stateless replica that only reads replicated state.
	Role string

	// HTTP
	ServerPort string

	// Folders
	LibraryDir string // Source audio files (the station library)
	HLSDir     string // FFmpeg output: segments + playlist, disposable
	CacheDir   string // Transcoded AAC renditions, disposable

	// FFmpeg / HLS
	FFmpegPath        string
	SegmentDuration   int // seconds per HLS segment
	HLSListSize       int // rolling playlist window
	ClientBufferDelay int // seconds of client-side buffering to compensate
	AACBitrate        string
	SampleRate        string
	AudioChannels     string
	ConversionTimeout time.Duration

	// Limits
	QueueSize        int
	AudioCacheMax    int   // max cached transcodes on disk
	MetadataCacheMax int   // max in-memory metadata entries
	MaxUploadSize    int64 // bytes

	// Replication (Redis)
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	SnapshotTTL     time.Duration
	PublishInterval time.Duration

	// Object storage (MinIO). When disabled the library lives on the
	// local filesystem under LibraryDir.
	UseObjectStorage bool
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioUseSSL      bool
	MinioBucket      string
	MinioRegion      string

	// Users database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Auth
	JWTSecret       string
	TokenExpiration time.Duration
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataBase := getEnv("WERADIO_DATA_DIR", "data")

	return &Config{
		Role:       getEnv("WERADIO_ROLE", "producer"),
		ServerPort: getEnv("WERADIO_PORT", "5000"),

		LibraryDir: filepath.Join(dataBase, "library"),
		HLSDir:     filepath.Join(dataBase, "hls_output"),
		CacheDir:   filepath.Join(dataBase, "audio_cache"),

		FFmpegPath:        getEnv("FFMPEG_PATH", "ffmpeg"),
		SegmentDuration:   getEnvInt("WERADIO_SEGMENT_DURATION", 2),
		HLSListSize:       getEnvInt("WERADIO_HLS_LIST_SIZE", 20),
		ClientBufferDelay: getEnvInt("WERADIO_CLIENT_BUFFER_DELAY", 10),
		AACBitrate:        getEnv("WERADIO_AAC_BITRATE", "128k"),
		SampleRate:        getEnv("WERADIO_SAMPLE_RATE", "44100"),
		AudioChannels:     getEnv("WERADIO_AUDIO_CHANNELS", "2"),
		ConversionTimeout: time.Duration(getEnvInt("WERADIO_CONVERSION_TIMEOUT", 120)) * time.Second,

		QueueSize:        getEnvInt("WERADIO_QUEUE_SIZE", 100),
		AudioCacheMax:    getEnvInt("WERADIO_CACHE_MAX_SIZE", 50),
		MetadataCacheMax: getEnvInt("WERADIO_METADATA_CACHE_MAX_SIZE", 200),
		MaxUploadSize:    int64(getEnvInt("WERADIO_MAX_UPLOAD_MB", 300)) * 1024 * 1024,

		RedisHost:       getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		SnapshotTTL:     time.Duration(getEnvInt("WERADIO_SNAPSHOT_TTL", 3600)) * time.Second,
		PublishInterval: time.Duration(getEnvInt("WERADIO_PUBLISH_INTERVAL_MS", 1000)) * time.Millisecond,

		UseObjectStorage: getEnvBool("WERADIO_USE_OBJECT_STORAGE", false),
		MinioEndpoint:    getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey:   getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:   getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:      getEnvBool("MINIO_USE_SSL", false),
		MinioBucket:      getEnv("MINIO_BUCKET", "weradio-library"),
		MinioRegion:      getEnv("MINIO_REGION", "us-east-1"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "weradio"),

		JWTSecret:       getEnv("WERADIO_JWT_SECRET", "dev-secret-change-me"),
		TokenExpiration: time.Duration(getEnvInt("WERADIO_TOKEN_EXPIRATION_HOURS", 24)) * time.Hour,
	}
}
