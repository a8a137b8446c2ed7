package types

// Model represents a model file discovered in the models directory.
type Model struct {
	// Stable identifier for the model (the file name).
	// example: phi-2.Q4_K_M.gguf
	ID string `json:"id" example:"phi-2.Q4_K_M.gguf"`
	// Human-friendly name.
	// example: phi-2 (Q4_K_M)
	Name string `json:"name" example:"phi-2 (Q4_K_M)"`
	// Absolute path to the model file on disk.
	// example: /home/user/.local/share/overlayd/models/phi-2.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/.local/share/overlayd/models/phi-2.Q4_K_M.gguf"`
	// Size of the file in bytes.
	// example: 1789239104
	SizeBytes int64 `json:"size_bytes" example:"1789239104"`
	// Quantization level parsed from the file name, if any.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
}
