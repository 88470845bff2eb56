/*
Command gaiaget fetches Gaia DR3 sources in sky fields and applies the
standard corrections to them.

Contents

  Program overview
  Command line usage
  Configuration
  Coefficient files
  Corrections
  Output


Program overview

Input is one or more sky fields, each a center position and a size.  For
each field gaiaget queries the Gaia archive TAP service for every source of
gaiadr3.gaia_source inside the field, nearest to the center first.  The
fields are combined into one table and three corrections are applied in
order: the parallax zero-point, the corrected BP/RP flux excess factor, and
the radial velocity correction.  Output is CSV, one row per source, with all
archive columns plus the correction columns.

Sample run:

  gaiaget -g square 266.41683 -29.00781 6m > center.csv

selects a square field six arc minutes on a side at the Galactic center.
Progress is logged to stderr:

  Downloading data - square - Field size = 0.1° - RA = 17ʰ45ᵐ40.0ˢ - DEC = -29°00′28.1″
  run 6f0e... | Applied: zero_point | Took: 0.00 mins | Shape: (312, 153)
  run 6f0e... | Applied: flux_excess | Took: 0.00 mins | Shape: (312, 154)
  run 6f0e... | Applied: rv_correction | Took: 0.00 mins | Shape: (312, 154)
  run 6f0e... | Applied: process | Took: 0.00 mins | Shape: (312, 153)

Shapes are those of each stage's input.


Command line usage

Invoking the program without command line arguments (or with invalid
arguments) shows this usage prompt.

  Usage: gaiaget [options] <ra> <dec> <size> ...   fetch and correct fields
         gaiaget [options] -serve <addr>          serve fields over HTTP
         gaiaget -h                               display help and quick reference
         gaiaget -v                               display version and copyright

  Options:
         -g cone|square
         -c <credentials-file>
         -u <user>
         -z <coefficient-dir>
         -n <row-limit>
         -o <output-file>
         -db <database-url>
         -synthetic <sources-per-field>

Angles are decimal degrees, or suffixed with d, m, or s for degrees, arc
minutes, or arc seconds.  Size is the diameter of a cone (the default) or
the side of a square.  Any number of fields may be given, three arguments
each.  Fields are queried concurrently.

Without -n each field runs as an asynchronous archive job: the job is
submitted, its phase polled until it completes, and its result read.  Jobs
have no row cap.  With -n fields are queried on the synchronous endpoint,
which is faster for small fields.

-c names a credentials file of two lines, user name and password.  -u gives
a user name and prompts for the password.  With either, gaiaget logs in to
the archive before querying and logs out when done, even if a query fails.

-synthetic generates the given number of plausible sources per field instead
of querying the archive.  Output is repeatable.  A synthetic run makes no
network requests, so the coefficient files must already be in the
coefficient directory.

-serve runs an HTTP server instead.  GET /v1/sources takes query parameters
ra, dec, size, geometry, and format (csv or json) and returns the corrected
table.  GET /healthz reports readiness.


Configuration

Options default from environment variables, which may also be set in a file
.env in the working directory.  Variables already in the environment take
precedence over the file.

  GAIA_TAP_URL             TAP server root (https://gea.esac.esa.int/tap-server)
  GAIA_CREDENTIALS         credentials file, as -c
  GAIAGET_ZPT_DIR          coefficient file directory, as -z
  GAIAGET_ROW_LIMIT        maximum rows per field, as -n; no limit if <= 0
  GAIAGET_REQUEST_TIMEOUT  HTTP request timeout, as a Go duration (5m)
  DATABASE_URL             Postgres connection string, as -db


Coefficient files

The zero-point is interpolated from the coefficient tables of Lindegren et
al. (2021), z5_200720.txt for five parameter solutions and z6_200720.txt for
six parameter solutions.  They are read from the coefficient directory.  If
they are missing or can't be read, gaiaget downloads fresh copies from the
gaiadr3_zeropoint repository and tries again, except in synthetic runs.

Each file has two header lines listing the colour and latitude basis
indexes j and k of the coefficient columns, then one line per magnitude
knot: G followed by the coefficients in micro arc seconds.


Corrections

zpt is the parallax zero-point in mas, to be subtracted from parallax.  It
is computed for sources with five or six parameter solutions, 6 < G < 21,
and colour strictly within the calibrated range (1.1 < nu_eff_used_in_astrometry
< 1.9, or 1.24 < pseudocolour < 1.72).  Other sources get an empty value.

phot_bp_rp_excess_factor is replaced by the corrected excess factor of
Riello et al. (2021), the observed factor less a polynomial in bp_rp.
Sources without bp_rp keep the observed value.

corrected_radial_velocity corrects radial_velocity by template
temperature.  Hot sources (rv_template_teff >= 8500 K) with grvs_mag 6 to 12
get the correction of Blomme et al. (2022).  Cool sources fainter than
grvs_mag 11 get the correction of Katz et al. (2022) and brighter cool
sources keep radial_velocity unchanged.  Other sources, and sources without
rv_template_teff or grvs_mag, get an empty value.


Output

CSV goes to stdout or the file given by -o.  Empty fields are undefined
values.  With -db, the corrected table is also copied to the Postgres table
gaia_corrected with the run id of the pipeline, creating the table if
needed.

-------------
Public domain.
*/
package main
