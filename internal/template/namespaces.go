package template

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/mockforge/core/internal/model"
)

// evalFaker resolves a faker.<name> token. The supported names cover
// spec.md §4.3's example list; anything else is unknown.
func evalFaker(faker *gofakeit.Faker, name string) (string, bool) {
	switch name {
	case "name":
		return faker.Name(), true
	case "email":
		return faker.Email(), true
	case "phone":
		return faker.Phone(), true
	case "address":
		a := faker.Address()
		return a.Address, true
	case "word":
		return faker.Word(), true
	case "datetime":
		return faker.Date().Format(time.RFC3339), true
	case "uuid":
		return faker.UUID(), true
	case "company":
		return faker.Company(), true
	case "sentence":
		return faker.Sentence(6), true
	default:
		return "", false
	}
}

// evalRandom resolves a random.<name>(.<arg>)? token using rng, a
// stream unique to this token's position (see stream.go).
func evalRandom(rng *rand.Rand, name, arg string) (string, bool) {
	switch name {
	case "uuid":
		id, err := uuid.NewRandomFromReader(rngReader{rng})
		if err != nil {
			return "", false
		}
		return id.String(), true
	case "int":
		if arg == "small" {
			return strconv.Itoa(rng.Intn(100)), true
		}
		return strconv.Itoa(rng.Intn(1_000_000)), true
	case "float":
		return strconv.FormatFloat(rng.Float64()*1000, 'f', 4, 64), true
	case "bool":
		return strconv.FormatBool(rng.Intn(2) == 1), true
	case "choice":
		options := strings.Split(arg, ",")
		if len(options) == 0 || (len(options) == 1 && options[0] == "") {
			return "", false
		}
		return strings.TrimSpace(options[rng.Intn(len(options))]), true
	default:
		return "", false
	}
}

// rngReader adapts *rand.Rand to io.Reader for uuid.NewRandomFromReader,
// avoiding uuid.SetRand's process-wide mutable global state.
type rngReader struct{ rng *rand.Rand }

func (r rngReader) Read(p []byte) (int, error) { return r.rng.Read(p) }

func evalEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}

func evalNow(name string) string {
	now := time.Now().UTC()
	if name == "unix" {
		return strconv.FormatInt(now.Unix(), 10)
	}
	return now.Format(time.RFC3339)
}

// evalRequest resolves request.<name>.<arg> tokens against the inbound
// request and captured path parameters.
func evalRequest(req *model.ProtocolRequest, params model.PathParams, name, arg string) (string, bool) {
	if req == nil {
		return "", false
	}
	switch name {
	case "header":
		return req.Header(arg)
	case "query":
		return req.QueryParam(arg)
	case "path":
		if params == nil {
			return "", false
		}
		v, ok := params[arg]
		return v, ok
	case "body":
		if len(req.Body.Bytes) == 0 {
			return "", false
		}
		result := gjson.GetBytes(req.Body.Bytes, gjsonPath(arg))
		if !result.Exists() {
			return "", false
		}
		return result.String(), true
	default:
		return "", false
	}
}

// gjsonPath converts a leading-"/" JSON-pointer-style path (the form
// spec.md §4.3 uses for request.body.<json-pointer>) into gjson's
// dot-separated path syntax.
func gjsonPath(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "/")
	return strings.ReplaceAll(trimmed, "/", ".")
}

// evalState resolves state.<name>.<arg> tokens against the workspace's
// current unified state.
func evalState(state *model.UnifiedState, name, arg string) (string, bool) {
	if state == nil {
		return "", false
	}
	switch name {
	case "persona":
		if state.Persona == nil {
			return "", false
		}
		v, ok := state.Persona.Traits[arg]
		return v, ok
	case "scenario":
		return state.ScenarioID, state.ScenarioID != ""
	case "reality":
		if arg != "ratio" {
			return "", false
		}
		return fmt.Sprintf("%.4f", state.RealityRatio), true
	default:
		return "", false
	}
}
