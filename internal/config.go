package internal

import (
	"fmt"
	"sodeclick-chat/domain"
	"sodeclick-chat/errors"
	"sodeclick-chat/runtime"
	"strings"
	"time"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,required=true"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	DebugInspect   bool   `env:"DEBUG_INSPECT,default=false"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	JWTIssuer         string        `env:"JWT_ISSUER,default=sodeclick"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	DatabaseURL    string `env:"DATABASE_URL,required=true"`
	RedisAddr      string `env:"REDIS_ADDR,required=true"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB,default=0"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	TierQuotas        string `env:"TIER_QUOTAS"`
	DefaultDailyQuota int    `env:"DEFAULT_DAILY_QUOTA,default=10"`

	JoinInterval     time.Duration `env:"JOIN_INTERVAL,default=1s"`
	SendInterval     time.Duration `env:"SEND_INTERVAL,default=2s"`
	MarkReadInterval time.Duration `env:"MARK_READ_INTERVAL,default=500ms"`

	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=30s"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	MaxFrameSize         int64         `env:"MAX_FRAME_SIZE,default=16384"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits the comma separated allow-list.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) RateLimits() map[runtime.EventKind]time.Duration {
	return map[runtime.EventKind]time.Duration{
		runtime.JoinKind:        c.JoinInterval,
		runtime.SendMessageKind: c.SendInterval,
		runtime.MarkReadKind:    c.MarkReadInterval,
	}
}

// defaultTierQuotas applies when TIER_QUOTAS is unset.
// The tag parser splits on commas, so it cannot live in a default tag.
const defaultTierQuotas = "member:10,silver:50,gold:100,vip:-1,diamond:-1,platinum:-1"

func (c Config) TierPolicy() (domain.TierPolicy, error) {
	raw := c.TierQuotas
	if strings.TrimSpace(raw) == "" {
		raw = defaultTierQuotas
	}
	quotas, err := domain.ParseTierQuotas(raw)
	if err != nil {
		return domain.TierPolicy{}, err
	}
	return domain.NewTierPolicy(quotas, c.DefaultDailyQuota), nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: CHARACTER_REPLACEMENT got %q", errors.ErrInvalidReplacement, str)
	}
	return r[0], nil
}
