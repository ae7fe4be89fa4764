package config

type Redis struct {
	Addr     string
	Password string
	DB       int
}

var _ RedisConfig = Redis{}

func loadRedis() (Redis, error) {
	db, err := getInt("REDIS_DB", 0)
	return Redis{
		Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
		Password: GetEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}, err
}

func (r Redis) GetRedisAddr() string {
	return r.Addr
}

func (r Redis) GetRedisPassword() string {
	return r.Password
}

func (r Redis) GetRedisDB() int {
	return r.DB
}

type Downstream struct {
	APIURL string
}

var _ DownstreamConfig = Downstream{}

func (d Downstream) GetDownstreamAPIURL() string {
	return d.APIURL
}
