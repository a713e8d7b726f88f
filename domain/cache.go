package domain

// PromptCache memoizes replies keyed by exact prompt text.
type PromptCache interface {
	Get(key string) (string, bool)
	Add(key, reply string)
	Len() int
}
