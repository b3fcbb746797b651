// Package model defines the boundary types shared by every pixzle package:
// the decoded raster (RawImage), image geometry, and the structured error
// taxonomy.
//
// Errors returned by the engine, distributor, manifest and codec layers are
// *Error values. Callers branch on Kind via IsKind or errors.As.
package model
