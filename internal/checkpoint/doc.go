// Package checkpoint saves and restores trained forecasters.
//
// A checkpoint holds the model configuration, the parameters and run
// metadata in a single binary file:
//
//	Format Structure:
//	  [4 bytes: Magic "GRDC"]
//	  [4 bytes: Version (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [32 bytes: SHA-256 of header and payload]
//	  [Header: JSON metadata]
//	  [Payload: float32 LE tensors, in header order]
//
// Example usage:
//
//	err := checkpoint.Save("model.grdc", checkpoint.Checkpoint{
//	    Model:  model.Config(),
//	    Params: params,
//	    RunID:  runID,
//	})
//
//	cp, err := checkpoint.Load("model.grdc")
//	model, err := cp.Restore()
//	pred, err := model.Predict(cp.Params, x, 256)
package checkpoint
