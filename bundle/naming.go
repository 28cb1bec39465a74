package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

const defaultHashLength = 20

var placeholderRe = regexp.MustCompile(`\[(name|id|hash|chunkhash|contenthash|ext)(?::(\d+))?\]`)

// nameParams are the values substituted into an output filename template.
type nameParams struct {
	Name        string
	ID          int
	Ext         string
	Hash        string // compilation hash, shared by every file of a build
	ContentHash string
}

// renderFilename expands [name], [id], [ext], [hash], [chunkhash] and
// [contenthash]. Hash placeholders accept a length, e.g. [hash:8].
func renderFilename(template string, p nameParams) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		switch sub[1] {
		case "name":
			return p.Name
		case "id":
			return strconv.Itoa(p.ID)
		case "ext":
			return p.Ext
		case "hash":
			return truncate(p.Hash, sub[2])
		default:
			return truncate(p.ContentHash, sub[2])
		}
	})
}

func truncate(hash, length string) string {
	n := defaultHashLength
	if length != "" {
		if v, err := strconv.Atoi(length); err == nil {
			n = v
		}
	}
	if n > len(hash) {
		n = len(hash)
	}
	return hash[:n]
}

func contentHash(contents ...[]byte) string {
	h := sha256.New()
	for _, c := range contents {
		h.Write(c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// stylesTemplate derives the stylesheet template from the script template
// when no extraction plugin names one.
func stylesTemplate(scripts string) string {
	if strings.HasSuffix(scripts, ".js") {
		return strings.TrimSuffix(scripts, ".js") + ".css"
	}
	return scripts + ".css"
}
