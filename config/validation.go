package config

import "fmt"

func (c *Config) Validate() error {
	if err := c.APL.Validate(); err != nil {
		return fmt.Errorf("apl config: %w", err)
	}
	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("security config: %w", err)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database config: DATABASE_DSN is required")
	}
	return nil
}

func (c *APLConfig) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.FilePath == "" {
			return fmt.Errorf("file backend requires APL_FILE_PATH")
		}
	case BackendDynamoDB:
		if c.DynamoTable == "" {
			return fmt.Errorf("dynamodb backend requires APL_DYNAMO_TABLE")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis backend requires APL_REDIS_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown APL backend %q", c.Backend)
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("SECRET_ENCRYPTION_KEY is required")
	}
	return nil
}
