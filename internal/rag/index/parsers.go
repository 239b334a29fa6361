package index

import (
	"sync"

	"github.com/DewminaUdayashan/meridian/internal/rag/parser/markdown"
	"github.com/DewminaUdayashan/meridian/internal/rag/parser/text"
)

var registerParsersOnce sync.Once

func ensureDefaultParsers() {
	registerParsersOnce.Do(func() {
		markdown.Register()
		text.Register()
	})
}
