package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b,"))
	assert.Nil(t, SplitList(""))
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("X_BROKER", "tcp://h:1883")
	t.Setenv("X_QOS", "2")
	t.Setenv("X_TOPICS", "a/#,b/#")

	c := MQTTConfig{QoS: 0, Topics: []string{"default/#"}}
	c.LoadFromEnv("X")
	assert.Equal(t, "tcp://h:1883", c.Broker)
	assert.Equal(t, byte(2), c.QoS)
	assert.Equal(t, []string{"a/#", "b/#"}, c.Topics)

	// 越界的 QoS 被忽略
	t.Setenv("X_QOS", "5")
	c.LoadFromEnv("X")
	assert.Equal(t, byte(2), c.QoS)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_NAME", "vib")

	c := DatabaseConfig{User: "u", Password: "p", SSLMode: "disable"}
	c.LoadFromEnv("PG")
	assert.Equal(t, "host=db port=6543 user=u password=p dbname=vib sslmode=disable", c.GetDSN())
}
