// Package suggest proposes well-known PyPI package names close to a
// misspelled one.
package suggest

import (
	"sort"
	"strings"

	"github.com/git-pkgs/pyintel/internal/core"
)

const (
	DefaultMax  = 5
	maxDistance = 2
	minContains = 3
)

// Popular is the list of names suggestions are drawn from.
var Popular = []string{
	"aiohttp", "alembic", "anyio", "apache-airflow", "arrow", "asyncpg", "attrs",
	"beautifulsoup4", "black", "boto3", "botocore", "celery", "certifi", "cffi",
	"chardet", "charset-normalizer", "click", "colorama", "coverage", "cryptography",
	"cython", "dask", "django", "django-rest-framework", "djangorestframework", "docker",
	"fastapi", "filelock", "flake8", "flask", "gevent", "google-cloud-storage", "grpcio",
	"gunicorn", "h11", "httpcore", "httpx", "idna", "importlib-metadata", "isort",
	"jinja2", "jmespath", "jsonschema", "keras", "lxml", "markdown", "markupsafe",
	"matplotlib", "mypy", "networkx", "nltk", "numpy", "openai", "openpyxl", "packaging",
	"pandas", "paramiko", "pillow", "pip", "platformdirs", "pluggy", "poetry",
	"protobuf", "psutil", "psycopg2", "psycopg2-binary", "pyarrow", "pycparser",
	"pydantic", "pygments", "pyjwt", "pylint", "pymongo", "pymysql", "pyopenssl",
	"pyparsing", "pytest", "pytest-cov", "python-dateutil", "python-dotenv", "pytz",
	"pyyaml", "redis", "regex", "requests", "requests-oauthlib", "rich", "ruff",
	"s3transfer", "scikit-learn", "scipy", "seaborn", "setuptools", "six", "sqlalchemy",
	"starlette", "sympy", "tensorflow", "toml", "tomli", "torch", "tornado", "tqdm",
	"transformers", "typer", "typing-extensions", "urllib3", "uvicorn", "virtualenv",
	"websockets", "werkzeug", "wheel", "wrapt", "xmltodict", "yarl", "zipp",
}

type candidate struct {
	name     string
	distance int
}

// Suggest returns up to max names from Popular that are within a small edit
// distance of name, or that contain it (or are contained in it). Results are
// ordered by distance, then name. max <= 0 uses DefaultMax.
func Suggest(name string, max int) []string {
	if max <= 0 {
		max = DefaultMax
	}
	query := core.NormalizeName(name)
	if query == "" {
		return nil
	}

	var matches []candidate
	for _, p := range Popular {
		target := core.NormalizeName(p)
		if target == query {
			continue
		}
		d := Distance(query, target)
		if d <= maxDistance || related(query, target) {
			matches = append(matches, candidate{name: p, distance: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})

	if len(matches) > max {
		matches = matches[:max]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

func related(query, target string) bool {
	if len(query) < minContains {
		return false
	}
	return strings.Contains(target, query) || strings.Contains(query, target)
}

// Distance is the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
