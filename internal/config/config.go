package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"

	"yuzu/souschef/internal/speech"
)

type Config struct {
	Server struct {
		Port        string
		RPCAddr     string
		MetricsAddr string
		LogLevel    string
	}
	Model struct {
		BaseURL      string
		APIKey       string
		Model        string
		VisionModel  string
		TimeoutSecs  int
		Instructions string
	}
	Eleven struct {
		BaseURL     string
		APIKey      string
		VoiceID     string
		ModelID     string
		TimeoutSecs int
	}
	Catalog struct {
		Path           string
		FuzzyThreshold float64
	}
	Live struct {
		TokenSecret   string
		TokenTTLMin   int
		TokenSkewSecs int
	}
	Session struct {
		VisionHistory     int
		SameStepThreshold float64
		MaxToolRounds     int
		LaneCapacity      int
	}
	Speech struct {
		RepeatCooldownSecs  int
		MinQuestionGapSecs  int
		StepReminderSecs    int
		StepRelateThreshold float64
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rpc_addr", ":9090")
	v.SetDefault("server.metrics_addr", ":8082")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("model.base_url", "https://api.openai.com")
	v.SetDefault("model.model", "gpt-4.1-mini")
	v.SetDefault("model.timeout_secs", 45)

	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("elevenlabs.model_id", "eleven_turbo_v2_5")
	v.SetDefault("elevenlabs.timeout_secs", 20)

	v.SetDefault("catalog.path", "data/recipes.yaml")
	v.SetDefault("catalog.fuzzy_threshold", 0.62)

	v.SetDefault("live.token_ttl_min", 240)
	v.SetDefault("live.token_skew_secs", 60)

	v.SetDefault("session.vision_history", 10)
	v.SetDefault("session.same_step_threshold", 0.65)
	v.SetDefault("session.max_tool_rounds", 8)
	v.SetDefault("session.lane_capacity", 64)

	v.SetDefault("speech.repeat_cooldown_secs", 120)
	v.SetDefault("speech.min_question_gap_secs", 600)
	v.SetDefault("speech.step_reminder_secs", 45)
	v.SetDefault("speech.step_relate_threshold", 0.25)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.rpc_addr", "RPC_ADDR")
	v.BindEnv("server.metrics_addr", "METRICS_ADDR")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("model.base_url", "LLM_BASE_URL")
	v.BindEnv("model.api_key", "LLM_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("model.model", "LLM_MODEL")
	v.BindEnv("model.vision_model", "LLM_VISION_MODEL")
	v.BindEnv("model.timeout_secs", "LLM_TIMEOUT_SECS")
	v.BindEnv("model.instructions", "LLM_SYSTEM_PROMPT")

	v.BindEnv("elevenlabs.base_url", "ELEVENLABS_BASE_URL")
	v.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	v.BindEnv("elevenlabs.voice_id", "ELEVENLABS_VOICE_ID")
	v.BindEnv("elevenlabs.model_id", "ELEVENLABS_MODEL_ID")
	v.BindEnv("elevenlabs.timeout_secs", "ELEVENLABS_TIMEOUT_SECS")

	v.BindEnv("catalog.path", "CATALOG_PATH")
	v.BindEnv("catalog.fuzzy_threshold", "CATALOG_FUZZY_THRESHOLD")

	v.BindEnv("live.token_secret", "LIVE_TOKEN_SECRET")
	v.BindEnv("live.token_ttl_min", "LIVE_TOKEN_TTL_MIN")
	v.BindEnv("live.token_skew_secs", "LIVE_TOKEN_SKEW_SECS")

	v.BindEnv("session.vision_history", "SESSION_VISION_HISTORY")
	v.BindEnv("session.same_step_threshold", "SESSION_SAME_STEP_THRESHOLD")
	v.BindEnv("session.max_tool_rounds", "SESSION_MAX_TOOL_ROUNDS")
	v.BindEnv("session.lane_capacity", "SESSION_LANE_CAPACITY")

	v.BindEnv("speech.repeat_cooldown_secs", "SPEECH_REPEAT_COOLDOWN_SECS")
	v.BindEnv("speech.min_question_gap_secs", "SPEECH_MIN_QUESTION_GAP_SECS")
	v.BindEnv("speech.step_reminder_secs", "SPEECH_STEP_REMINDER_SECS")
	v.BindEnv("speech.step_relate_threshold", "SPEECH_STEP_RELATE_THRESHOLD")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.RPCAddr = v.GetString("server.rpc_addr")
	c.Server.MetricsAddr = v.GetString("server.metrics_addr")
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Model.BaseURL = v.GetString("model.base_url")
	c.Model.APIKey = v.GetString("model.api_key")
	c.Model.Model = v.GetString("model.model")
	c.Model.VisionModel = v.GetString("model.vision_model")
	c.Model.TimeoutSecs = v.GetInt("model.timeout_secs")
	c.Model.Instructions = v.GetString("model.instructions")

	c.Eleven.BaseURL = v.GetString("elevenlabs.base_url")
	c.Eleven.APIKey = v.GetString("elevenlabs.api_key")
	c.Eleven.VoiceID = v.GetString("elevenlabs.voice_id")
	c.Eleven.ModelID = v.GetString("elevenlabs.model_id")
	c.Eleven.TimeoutSecs = v.GetInt("elevenlabs.timeout_secs")

	c.Catalog.Path = v.GetString("catalog.path")
	c.Catalog.FuzzyThreshold = v.GetFloat64("catalog.fuzzy_threshold")

	c.Live.TokenSecret = v.GetString("live.token_secret")
	c.Live.TokenTTLMin = v.GetInt("live.token_ttl_min")
	c.Live.TokenSkewSecs = v.GetInt("live.token_skew_secs")

	c.Session.VisionHistory = v.GetInt("session.vision_history")
	c.Session.SameStepThreshold = v.GetFloat64("session.same_step_threshold")
	c.Session.MaxToolRounds = v.GetInt("session.max_tool_rounds")
	c.Session.LaneCapacity = v.GetInt("session.lane_capacity")

	c.Speech.RepeatCooldownSecs = v.GetInt("speech.repeat_cooldown_secs")
	c.Speech.MinQuestionGapSecs = v.GetInt("speech.min_question_gap_secs")
	c.Speech.StepReminderSecs = v.GetInt("speech.step_reminder_secs")
	c.Speech.StepRelateThreshold = v.GetFloat64("speech.step_relate_threshold")

	log.Printf("config loaded: port=%s rpc=%s model=%s catalog=%s", c.Server.Port, c.Server.RPCAddr, c.Model.Model, c.Catalog.Path)
	return c
}

// SpeechConfig converts the speech section into gate settings.
func (c Config) SpeechConfig() speech.Config {
	return speech.Config{
		RepeatCooldown:       secs(c.Speech.RepeatCooldownSecs),
		MinQuestionGap:       secs(c.Speech.MinQuestionGapSecs),
		StepReminderInterval: secs(c.Speech.StepReminderSecs),
		StepRelateThreshold:  c.Speech.StepRelateThreshold,
	}
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func toString(v any) string { return fmt.Sprint(v) }
