package meshing

import (
	"context"
	"sync"

	"voxelsim/internal/voxel"
	"voxelsim/internal/world"
)

// MeshJob represents a visibility pass over one chunk.
type MeshJob struct {
	Store *world.ChunkStore
	Key   voxel.ChunkKey
	// Result channel - will be sent the result when done
	ResultChan chan MeshResult
}

// MeshResult contains the result of a meshing operation. Loaded is false
// when the chunk was evicted before the job ran.
type MeshResult struct {
	Key    voxel.ChunkKey
	Mesh   ChunkMesh
	Loaded bool
}

// WorkerPool manages goroutines for mesh generation. Jobs only read the
// store, so the owner must not mutate it until all results are collected.
type WorkerPool struct {
	jobQueue chan MeshJob
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewWorkerPool creates a new mesh worker pool
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	pool := &WorkerPool{
		jobQueue: make(chan MeshJob, queueSize),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := range workers {
		pool.wg.Add(1)
		go pool.worker(i)
	}
	return pool
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int { return p.workers }

// SubmitJob submits a mesh generation job to the pool
// Returns true if job was submitted successfully, false if queue is full
func (p *WorkerPool) SubmitJob(job MeshJob) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// SubmitJobBlocking submits a job and blocks until it's queued. It returns
// false if the pool shut down first.
func (p *WorkerPool) SubmitJobBlocking(job MeshJob) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.jobQueue <- job:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// BuildAll meshes keys on the pool and returns the results in key order.
func (p *WorkerPool) BuildAll(store *world.ChunkStore, keys []voxel.ChunkKey) []MeshResult {
	results := make(chan MeshResult, len(keys))
	submitted := 0
	for _, k := range keys {
		if !p.SubmitJobBlocking(MeshJob{Store: store, Key: k, ResultChan: results}) {
			break
		}
		submitted++
	}
	byKey := make(map[voxel.ChunkKey]MeshResult, submitted)
	for range submitted {
		select {
		case r := <-results:
			byKey[r.Key] = r
		case <-p.ctx.Done():
			return nil
		}
	}
	out := make([]MeshResult, 0, submitted)
	for _, k := range keys[:submitted] {
		out = append(out, byKey[k])
	}
	return out
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobQueue:
			mesh, loaded := BuildChunk(job.Store, job.Key)
			select {
			case job.ResultChan <- MeshResult{Key: job.Key, Mesh: mesh, Loaded: loaded}:
			case <-p.ctx.Done():
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// Shutdown stops the workers and waits for them. Queued jobs are dropped.
func (p *WorkerPool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}

// QueueLength returns the current number of jobs in the queue
func (p *WorkerPool) QueueLength() int {
	return len(p.jobQueue)
}
