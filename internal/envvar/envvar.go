package envvar

const (
	// OnnxportEnv is the environment variable used to determine the environment
	OnnxportEnv = "ONNXPORT_ENV"

	// OnnxportModelsPath overrides the directory downloaded weights are cached in
	OnnxportModelsPath = "ONNXPORT_MODELS_PATH"

	// OnnxportInstallPath overrides the directory exported files are copied to
	OnnxportInstallPath = "ONNXPORT_INSTALL_PATH"

	// OnnxportYoloBin is the path to the Ultralytics yolo executable
	OnnxportYoloBin = "ONNXPORT_YOLO_BIN"

	// OnnxportHFBin is the path to the Hugging Face hf executable
	OnnxportHFBin = "ONNXPORT_HF_BIN"
)
