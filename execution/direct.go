package execution

import (
	"encoding/json"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/isdmx/modhost/activator"
)

// DirectContext hosts a module in the calling process. Types it loads stay
// loaded for the life of the process.
type DirectContext struct {
	logger     *zap.Logger
	modulePath string
	configPath string
	domain     *activator.Domain
}

func newDirectContext(logger *zap.Logger, modulePath, configPath string, loader activator.Loader) *DirectContext {
	logger.Debug("direct context created", zap.String("config", configPath))

	return &DirectContext{
		logger:     logger,
		modulePath: modulePath,
		configPath: configPath,
		domain:     activator.NewDomain(modulePath, loader),
	}
}

func (d *DirectContext) ModulePath() string { return d.modulePath }

func (d *DirectContext) ConfigPath() string { return d.configPath }

func (*DirectContext) Isolated() bool { return false }

func (d *DirectContext) CreateObject(module, typeName string, args ...any) (Object, error) {
	value, err := d.domain.Activate(module, typeName, args)
	if err != nil {
		return nil, activator.Unwrap(err)
	}
	return &localObject{value: value}, nil
}

// Dispose is a no-op: nothing loaded in-process can be released.
func (*DirectContext) Dispose() {}

type localObject struct {
	value any
}

func (o *localObject) TypeName() string {
	return fmt.Sprintf("%T", o.value)
}

func (o *localObject) Call(method string, args ...any) ([]any, error) {
	results, err := activator.Invoke(o.value, method, args)
	if err != nil {
		return nil, activator.Unwrap(err)
	}
	return results, nil
}

// Decode stores the live value itself when target can hold it, so both
// share state; otherwise the state is copied through JSON.
func (o *localObject) Decode(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer, got %T", ErrArgument, target)
	}

	v := reflect.ValueOf(o.value)
	if v.IsValid() && v.Type().AssignableTo(rv.Elem().Type()) {
		rv.Elem().Set(v)
		return nil
	}

	data, err := json.Marshal(o.value)
	if err != nil {
		return fmt.Errorf("failed to encode %T: %w", o.value, err)
	}
	return json.Unmarshal(data, target)
}
