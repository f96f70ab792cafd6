package proxy

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Types on the provider side.

type crop struct {
	Name    string
	Yield   int
	Seasons []string
	secret  string
}

type harvestReport struct {
	Crops  []crop
	ByName map[string]*crop
}

type farm struct {
	crops []crop
}

func (f *farm) Plant(c crop) int {
	f.crops = append(f.crops, c)
	return len(f.crops)
}

func (f *farm) Report() harvestReport {
	report := harvestReport{ByName: make(map[string]*crop)}
	for i := range f.crops {
		report.Crops = append(report.Crops, f.crops[i])
		report.ByName[f.crops[i].Name] = &f.crops[i]
	}
	return report
}

func (f *farm) Each(fn func(crop) bool) int {
	n := 0
	for _, c := range f.crops {
		n++
		if !fn(c) {
			break
		}
	}
	return n
}

func (f *farm) Sum(values ...int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func (f *farm) Explode() error { panic("boom") }

func (f *farm) Name() string { return "farm" }

// Types on the consumer side, declared independently.

type myCrop struct {
	Name    string
	Yield   int
	Seasons []string
}

type myReport struct {
	Crops  []myCrop
	ByName map[string]*myCrop
}

type farmAPI struct {
	Plant   func(myCrop) int
	Report  func() myReport
	Each    func(func(myCrop) bool) int
	Sum     func(...int) int
	Label   func() string `modhost:"Name"`
	Explode func() error
	Missing func() error
	Skipped func() string `modhost:"-"`
	private func()
}

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := NewFactory(16)
	require.NoError(t, err)
	return f
}

func TestBind_ForwardsWithStructuralConversion(t *testing.T) {
	f := newTestFactory(t)
	target := &farm{}

	var api farmAPI
	require.NoError(t, f.Bind(target, &api))

	assert.Equal(t, 1, api.Plant(myCrop{Name: "parsnip", Yield: 3, Seasons: []string{"spring"}}))
	assert.Equal(t, 2, api.Plant(myCrop{Name: "melon", Yield: 1}))

	report := api.Report()
	require.Len(t, report.Crops, 2)
	assert.Equal(t, myCrop{Name: "parsnip", Yield: 3, Seasons: []string{"spring"}}, report.Crops[0])
	assert.Nil(t, report.Crops[1].Seasons)
	require.Contains(t, report.ByName, "melon")
	assert.Equal(t, 1, report.ByName["melon"].Yield)

	var seen []string
	n := api.Each(func(c myCrop) bool {
		seen = append(seen, c.Name)
		return false
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"parsnip"}, seen)

	assert.Equal(t, 6, api.Sum(1, 2, 3))
	assert.Equal(t, "farm", api.Label())
	assert.Nil(t, api.Skipped)
	assert.Nil(t, api.private)
}

func TestBind_MissingMemberFailsPerCall(t *testing.T) {
	f := newTestFactory(t)

	var api farmAPI
	require.NoError(t, f.Bind(&farm{}, &api))

	err := api.Missing()
	var notFound *MemberNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Missing", notFound.Member)
	assert.Equal(t, "*proxy.farm", notFound.TargetType)

	// other members keep working
	assert.Equal(t, "farm", api.Label())

	var noErrorResult struct {
		Absent func() int
	}
	require.NoError(t, f.Bind(&farm{}, &noErrorResult))
	defer func() {
		r := recover()
		require.NotNil(t, r)
		_, ok := r.(*MemberNotFoundError)
		assert.True(t, ok, "expected *MemberNotFoundError, got %T", r)
	}()
	noErrorResult.Absent()
}

func TestBind_NilTarget(t *testing.T) {
	var api struct {
		Name func() (string, error)
	}
	require.NoError(t, newTestFactory(t).Bind(nil, &api))

	name, err := api.Name()
	assert.Empty(t, name)
	var notFound *MemberNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "<nil>", notFound.TargetType)
}

func TestBind_IncompatibleSignature(t *testing.T) {
	var api struct {
		Name  func() (int, error)
		Plant func(string) (int, error)
	}
	require.NoError(t, newTestFactory(t).Bind(&farm{}, &api))

	_, err := api.Name()
	var marshalErr *MarshalError
	require.True(t, errors.As(err, &marshalErr))
	assert.Equal(t, "Name", marshalErr.Member)

	_, err = api.Plant("parsnip")
	require.True(t, errors.As(err, &marshalErr))
	assert.Contains(t, err.Error(), "signatures differ in arity")
}

func TestBind_TargetPanicBecomesError(t *testing.T) {
	var api farmAPI
	require.NoError(t, newTestFactory(t).Bind(&farm{}, &api))

	err := api.Explode()
	var panicErr *PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "Explode", panicErr.Member)
	assert.Equal(t, "boom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestBind_InvalidShape(t *testing.T) {
	f := newTestFactory(t)

	var notPointer farmAPI
	assert.ErrorIs(t, f.Bind(&farm{}, notPointer), ErrInvalidShape)
	assert.ErrorIs(t, f.Bind(&farm{}, nil), ErrInvalidShape)

	n := 3
	assert.ErrorIs(t, f.Bind(&farm{}, &n), ErrInvalidShape)

	var nilShape *farmAPI
	assert.ErrorIs(t, f.Bind(&farm{}, nilShape), ErrInvalidShape)

	var withData struct {
		Name  func() string
		Count int
	}
	err := f.Bind(&farm{}, &withData)
	assert.ErrorIs(t, err, ErrInvalidShape)
	assert.Contains(t, err.Error(), "field Count is int")
}

type dynamicSource map[string]any

func (d dynamicSource) Member(name string) (reflect.Value, bool) {
	v, ok := d[name]
	if !ok {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(v), true
}

func TestBind_MemberSource(t *testing.T) {
	source := dynamicSource{
		"Greet": func(name string) string { return "hello " + strings.ToUpper(name) },
	}

	var api struct {
		Greet func(string) string
		Leave func(string) error
	}
	require.NoError(t, newTestFactory(t).Bind(source, &api))

	assert.Equal(t, "hello BOB", api.Greet("bob"))

	// members are resolved on each call
	source["Greet"] = func(name string) string { return "hi " + name }
	assert.Equal(t, "hi bob", api.Greet("bob"))

	var notFound *MemberNotFoundError
	assert.True(t, errors.As(api.Leave("bob"), &notFound))
}

func TestBind_NamedBasicTypes(t *testing.T) {
	type celsius float64
	type label string

	source := dynamicSource{
		"Warm": func(t float64, name string) (float64, string) { return t + 1, name + "!" },
	}
	var api struct {
		Warm func(celsius, label) (celsius, label)
	}
	require.NoError(t, newTestFactory(t).Bind(source, &api))

	temp, name := api.Warm(celsius(20), label("greenhouse"))
	assert.Equal(t, celsius(21), temp)
	assert.Equal(t, label("greenhouse!"), name)
}

func TestBind_InterfaceResults(t *testing.T) {
	source := dynamicSource{
		"Find": func(name string) any {
			if name == "" {
				return nil
			}
			return crop{Name: name, Yield: 2}
		},
	}
	var api struct {
		Find func(string) myCrop
	}
	require.NoError(t, newTestFactory(t).Bind(source, &api))
	assert.Equal(t, myCrop{Name: "kale", Yield: 2}, api.Find("kale"))
	assert.Equal(t, myCrop{}, api.Find(""))
}

func TestFactory_CachesPlansAndReportsCalls(t *testing.T) {
	f := newTestFactory(t)

	results := make(map[string]int)
	f.SetObserver(func(result string) { results[result]++ })

	var a, b farmAPI
	require.NoError(t, f.Bind(&farm{}, &a))
	require.NoError(t, f.Bind(&farm{}, &b))
	assert.Equal(t, 1, f.plans.Len())

	a.Label()
	b.Label()
	_ = a.Missing()
	_ = a.Explode()

	assert.Equal(t, map[string]int{
		ResultOK:             2,
		ResultMemberNotFound: 1,
		ResultPanic:          1,
	}, results)
}
