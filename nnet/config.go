package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"reflect"
	"strconv"
	"strings"
)

// Training configuration settings
type Config struct {
	DataSet         string
	WorkDir         string
	Eta             float64
	Lambda          float64
	Momentum        float64
	Bias            float64
	NormalWeights   bool
	FlattenInput    bool
	Shuffle         bool
	Normalise       bool
	Components      int
	PatchSize       int
	SamplesPerClass int
	TrainRatio      float64
	ValRatio        float64
	TrainBatch      int
	TestBatch       int
	MaxEpoch        int
	MaxSamples      int
	LogEvery        int
	StopAfter       int
	MinLoss         float64
	RandSeed        int64
	Runs            int
	Threads         int
	DebugLevel      int
	Profile         bool
	Layers          []LayerConfig
}

// Load network config given file name under DataDir
func LoadConfig(name string) (c Config, err error) {
	return LoadConfigFile(path.Join(DataDir, name))
}

// Load network config from given file path
func LoadConfigFile(filePath string) (c Config, err error) {
	var f *os.File
	if f, err = os.Open(filePath); err != nil {
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err = dec.Decode(&c); err != nil {
		return
	}
	err = c.Validate()
	return
}

// Check the settings are consistent
func (c Config) Validate() error {
	if c.DataSet == "" {
		return fmt.Errorf("config: DataSet name is required")
	}
	if c.PatchSize < 1 || c.PatchSize%2 == 0 {
		return fmt.Errorf("config: PatchSize must be a positive odd number: got %d", c.PatchSize)
	}
	if c.SamplesPerClass < 0 || c.TrainRatio < 0 || c.TrainRatio >= 1 {
		return fmt.Errorf("config: invalid train split")
	}
	if c.SamplesPerClass == 0 && c.TrainRatio == 0 {
		return fmt.Errorf("config: either SamplesPerClass or TrainRatio must be set")
	}
	if c.ValRatio < 0 || c.ValRatio >= 1 {
		return fmt.Errorf("config: invalid ValRatio setting")
	}
	if c.Eta <= 0 {
		return fmt.Errorf("config: learning rate Eta must be positive")
	}
	if c.Lambda < 0 || c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("config: invalid Lambda or Momentum setting")
	}
	if c.MaxEpoch < 1 {
		return fmt.Errorf("config: MaxEpoch must be at least 1")
	}
	if c.Components < 0 {
		return fmt.Errorf("config: Components cannot be negative")
	}
	if len(c.Layers) == 0 {
		return fmt.Errorf("config: no layers defined")
	}
	return nil
}

// Append layers to the config struct
func (c Config) AddLayers(layers ...ConfigLayer) Config {
	for _, l := range layers {
		c.Layers = append(c.Layers, l.Marshal())
	}
	return c
}

// Save default network definition and overwites current config
func (c Config) SaveDefault(name string) error {
	err := c.Save(name + ".default")
	if err != nil {
		return err
	}
	err = c.Save(name + ".net")
	return err
}

// Save config to JSON file under DataDir
func (c Config) Save(name string) error {
	filePath := path.Join(DataDir, "."+name)
	if err := c.SaveFile(filePath); err != nil {
		return err
	}
	return os.Rename(filePath, path.Join(DataDir, name))
}

// Save config to JSON file at given path
func (c Config) SaveFile(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fld := make([]string, st.NumField()-1)
	for i := range fld {
		fld[i] = st.Field(i).Name
	}
	return fld
}

func (c Config) Get(key string) interface{} {
	s := reflect.ValueOf(c)
	return s.FieldByName(key).Interface()
}

func (c Config) configString() string {
	fields := c.Fields()
	str := []string{"== Config =="}
	for _, key := range fields {
		str = append(str, fmt.Sprintf("%-15s: %v", key, c.Get(key)))
	}
	return strings.Join(str, "\n")
}

func (c Config) String() string {
	s := c.configString()
	if c.Layers != nil {
		str := []string{"\n== Network =="}
		for i, layer := range c.Layers {
			str = append(str, fmt.Sprintf("%2d: %s", i, layer))
		}
		s += strings.Join(str, "\n")
	}
	return s
}

// Set a config field from its string representation
func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	if !f.IsValid() {
		return c, fmt.Errorf("invalid config field: %s", key)
	}
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.Bool:
		var x bool
		if x, err = strconv.ParseBool(val); err == nil {
			f.SetBool(x)
		}
	case reflect.String:
		f.SetString(val)
	default:
		return c, fmt.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	return c, err
}

func (c Config) SetBool(key string, val bool) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	if !f.IsValid() {
		return c, fmt.Errorf("invalid config field: %s", key)
	}
	if f.Type().Kind() == reflect.Bool {
		f.SetBool(val)
		return c, nil
	}
	return c, fmt.Errorf("invalid type for SetBool: %v", f.Type().Kind())
}
