package tarball

// RepackRequest asks the pool to serialize SourceDir over the archive
// at TarFilePath. The result is delivered on ResponseChannel.
type RepackRequest struct {
	SourceDir       string
	TarFilePath     string
	ResponseChannel chan *RepackResponse
}

// RepackResponse reports the outcome of a repack.
type RepackResponse struct {
	TarFilePath string
	Error       error
}

// RepackPool limits how many bags are being re-serialized at once.
// Repacking a large bag is disk and CPU heavy, so move workers hand
// the job to this pool rather than each spawning their own.
type RepackPool struct {
	requests chan *RepackRequest
}

// NewRepackPool starts a pool with the given number of worker
// goroutines. A workers value below one is treated as one.
func NewRepackPool(workers int) *RepackPool {
	if workers < 1 {
		workers = 1
	}
	pool := &RepackPool{
		requests: make(chan *RepackRequest, workers*2),
	}
	for i := 0; i < workers; i++ {
		go pool.run()
	}
	return pool
}

// Add queues a repack request. The caller should read the result from
// request.ResponseChannel.
func (pool *RepackPool) Add(request *RepackRequest) {
	pool.requests <- request
}

// Repack queues a request and blocks until it completes.
func (pool *RepackPool) Repack(sourceDir, tarFilePath string) error {
	request := &RepackRequest{
		SourceDir:       sourceDir,
		TarFilePath:     tarFilePath,
		ResponseChannel: make(chan *RepackResponse, 1),
	}
	pool.Add(request)
	response := <-request.ResponseChannel
	return response.Error
}

func (pool *RepackPool) run() {
	for request := range pool.requests {
		err := RepackAtomic(request.SourceDir, request.TarFilePath)
		request.ResponseChannel <- &RepackResponse{
			TarFilePath: request.TarFilePath,
			Error:       err,
		}
	}
}
